package models

type MenuItem struct {
	ID          int     `json:"id" mapstructure:"id"`
	Name        string  `json:"name" mapstructure:"name"`
	Price       float64 `json:"price" mapstructure:"price"`
	Description string  `json:"description" mapstructure:"description"`
	Calories    int     `json:"calories" mapstructure:"calories"`
	SpicyLevel  int     `json:"spicy_level" mapstructure:"spicy_level"`
}

// DefaultMenu is the pizza menu offered when the config does not provide one.
var DefaultMenu = []MenuItem{
	{ID: 1, Name: "Margherita", Price: 12.99, Description: "Classic tomato and mozzarella", Calories: 850},
	{ID: 2, Name: "Pepperoni", Price: 14.99, Description: "Spicy pepperoni with cheese", Calories: 1100, SpicyLevel: 1},
	{ID: 3, Name: "Vegetarian", Price: 13.99, Description: "Mixed vegetables", Calories: 780},
	{ID: 4, Name: "Hawaiian", Price: 15.99, Description: "Ham and pineapple", Calories: 950},
	{ID: 5, Name: "BBQ Chicken", Price: 16.99, Description: "Grilled chicken with BBQ sauce", Calories: 1020, SpicyLevel: 1},
	{ID: 6, Name: "Mushroom", Price: 15.99, Description: "Mixed mushrooms and truffle", Calories: 880},
	{ID: 7, Name: "Mediterranean", Price: 16.99, Description: "Mediterranean flavors", Calories: 920},
}
