package simulator

import (
	"math/rand"
	"time"

	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"

	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/roadnet"
)

// Raw delivery coordinates are drawn from this inclusive range before snapping.
const (
	minCoordinate = 15
	maxCoordinate = 85
)

// DestinationSource yields delivery points on the road network.
type DestinationSource interface {
	Next() models.Point
}

// FakerDestinations draws seeded random coordinates and snaps them onto the network.
type FakerDestinations struct {
	fake    faker.Faker
	network *roadnet.Network
}

func NewFakerDestinations(seed int64, network *roadnet.Network) *FakerDestinations {
	return &FakerDestinations{
		fake:    faker.NewWithSeed(rand.NewSource(seed)),
		network: network,
	}
}

func (d *FakerDestinations) Next() models.Point {
	raw := models.Point{
		X: float64(d.fake.IntBetween(minCoordinate, maxCoordinate)),
		Y: float64(d.fake.IntBetween(minCoordinate, maxCoordinate)),
	}
	return d.network.SnapToNetwork(raw)
}

// OrderFactory creates orders from the menu.
type OrderFactory struct {
	fake faker.Faker
	menu []models.MenuItem
}

func NewOrderFactory(seed int64, menu []models.MenuItem) *OrderFactory {
	if len(menu) == 0 {
		menu = models.DefaultMenu
	}
	return &OrderFactory{
		fake: faker.NewWithSeed(rand.NewSource(seed + 1)),
		menu: menu,
	}
}

// RandomItem picks a menu item for generated orders.
func (f *OrderFactory) RandomItem() models.MenuItem {
	return f.menu[f.fake.IntBetween(0, len(f.menu)-1)]
}

// Lookup finds a menu item by name.
func (f *OrderFactory) Lookup(name string) (models.MenuItem, bool) {
	for _, item := range f.menu {
		if item.Name == name {
			return item, true
		}
	}
	return models.MenuItem{}, false
}

func (f *OrderFactory) Menu() []models.MenuItem {
	return append([]models.MenuItem(nil), f.menu...)
}

func (f *OrderFactory) CreateOrder(item models.MenuItem, destination models.Point, now time.Time) *models.Order {
	return &models.Order{
		ID:          cuid.New(),
		Item:        item.Name,
		Price:       item.Price,
		Destination: destination,
		Status:      models.OrderStatusPreparing,
		PlacedAt:    now,
	}
}
