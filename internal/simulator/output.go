package simulator

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/chrisdamba/deliverysim/internal/cloudwriter"
	"github.com/chrisdamba/deliverysim/internal/logger"
	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/simulator/producers"
)

type OutputDestination interface {
	WriteMessage(topic string, msg []byte) error
	Close() error
}

// partition reads the event timestamp and returns the hive-style partition it belongs to.
func partition(msg []byte) (map[string]interface{}, string, error) {
	var event map[string]interface{}
	if err := json.Unmarshal(msg, &event); err != nil {
		return nil, "", err
	}
	timestamp, ok := event["timestamp"].(float64)
	if !ok {
		return nil, "", fmt.Errorf("invalid timestamp")
	}
	eventTime := time.Unix(int64(timestamp), 0).UTC()
	year, month, day := eventTime.Date()
	return event, fmt.Sprintf("year=%d/month=%02d/day=%02d/hour=%02d", year, month, day, eventTime.Hour()), nil
}

// ConsoleOutput prints "[topic] payload" lines.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleOutput(w io.Writer) *ConsoleOutput {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleOutput{w: w}
}

func (c *ConsoleOutput) WriteMessage(topic string, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "[%s] %s\n", topic, msg); err != nil {
		return fmt.Errorf("failed to write to console: %w", err)
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }

type JSONOutput struct {
	mu       sync.Mutex
	basePath string
	folder   string
	files    map[string]*os.File
}

func NewJSONOutput(basePath, folder string) *JSONOutput {
	return &JSONOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*os.File),
	}
}

func (j *JSONOutput) WriteMessage(topic string, msg []byte) error {
	_, partitionPath, err := partition(msg)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(j.basePath, j.folder, topic, partitionPath)

	j.mu.Lock()
	defer j.mu.Unlock()

	fileKey := fmt.Sprintf("%s_%s", topic, partitionPath)
	file, ok := j.files[fileKey]
	if !ok {
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		file, err = os.Create(filepath.Join(fullPath, "data.json"))
		if err != nil {
			return err
		}
		j.files[fileKey] = file
	}

	if _, err := file.Write(msg); err != nil {
		return err
	}
	_, err = file.WriteString("\n")
	return err
}

func (j *JSONOutput) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var errs []error
	for key, file := range j.files {
		errs = append(errs, file.Close())
		delete(j.files, key)
	}
	return errors.Join(errs...)
}

type csvFile struct {
	file    *os.File
	writer  *csv.Writer
	headers []string
}

type CSVOutput struct {
	mu       sync.Mutex
	basePath string
	folder   string
	files    map[string]*csvFile
}

func NewCSVOutput(basePath, folder string) *CSVOutput {
	return &CSVOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*csvFile),
	}
}

func (c *CSVOutput) WriteMessage(topic string, msg []byte) error {
	event, partitionPath, err := partition(msg)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(c.basePath, c.folder, topic, partitionPath)

	c.mu.Lock()
	defer c.mu.Unlock()

	fileKey := fmt.Sprintf("%s_%s", topic, partitionPath)
	f, ok := c.files[fileKey]
	if !ok {
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		file, err := os.Create(filepath.Join(fullPath, "data.csv"))
		if err != nil {
			return err
		}
		f = &csvFile{file: file, writer: csv.NewWriter(file), headers: headersOf(event)}
		c.files[fileKey] = f
		if err := f.writer.Write(f.headers); err != nil {
			return err
		}
	}

	row := make([]string, len(f.headers))
	for i, header := range f.headers {
		if value, ok := event[header]; ok {
			row[i] = fmt.Sprintf("%v", value)
		}
	}
	if err := f.writer.Write(row); err != nil {
		return err
	}
	f.writer.Flush()
	return f.writer.Error()
}

func headersOf(event map[string]interface{}) []string {
	headers := make([]string, 0, len(event))
	for key := range event {
		headers = append(headers, key)
	}
	sort.Strings(headers)
	return headers
}

func (c *CSVOutput) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for key, f := range c.files {
		f.writer.Flush()
		errs = append(errs, f.writer.Error(), f.file.Close())
		delete(c.files, key)
	}
	return errors.Join(errs...)
}

// CloudParquetFile adapts a CloudWriter to the parquet-go file interface. It is write only.
type CloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func NewCloudParquetFile(cloudWriter cloudwriter.CloudWriter) *CloudParquetFile {
	return &CloudParquetFile{cloudWriter: cloudWriter}
}

// Open and Create return the receiver; the object is created on upload.
func (c *CloudParquetFile) Open(string) (source.ParquetFile, error)   { return c, nil }
func (c *CloudParquetFile) Create(string) (source.ParquetFile, error) { return c, nil }

func (c *CloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	default:
		return 0, fmt.Errorf("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *CloudParquetFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read not supported for cloud storage")
}

func (c *CloudParquetFile) Write(p []byte) (int, error) {
	n, err := c.cloudWriter.Write(p)
	c.offset += int64(n)
	return n, err
}

func (c *CloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}

type parquetFile struct {
	writer *writer.ParquetWriter
	file   source.ParquetFile
}

// ParquetOutput writes one parquet file per topic and hour, locally or to a cloud bucket.
type ParquetOutput struct {
	mu                 sync.Mutex
	basePath           string
	folder             string
	files              map[string]*parquetFile
	cloudWriterFactory cloudwriter.CloudWriterFactory
	cloudBucketName    string
	log                logger.Logger
}

// NewParquetOutput writes locally unless factory is non-nil.
func NewParquetOutput(basePath, folder string, factory cloudwriter.CloudWriterFactory, bucket string, log logger.Logger) *ParquetOutput {
	p := &ParquetOutput{
		basePath:           basePath,
		folder:             folder,
		files:              make(map[string]*parquetFile),
		cloudWriterFactory: factory,
		cloudBucketName:    bucket,
		log:                logger.OrNop(log),
	}
	if factory == nil {
		p.cleanup()
	}
	return p
}

func (p *ParquetOutput) WriteMessage(topic string, msg []byte) error {
	_, partitionPath, err := partition(msg)
	if err != nil {
		return err
	}
	record, err := newRecord(topic)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(msg, record); err != nil {
		return fmt.Errorf("decode %s record: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := fmt.Sprintf("%s_%s", topic, partitionPath)
	pf, ok := p.files[key]
	if !ok {
		pf, err = p.createNewWriter(topic, partitionPath)
		if err != nil {
			return fmt.Errorf("failed to create new writer: %w", err)
		}
		p.files[key] = pf
	}

	if err := pf.writer.Write(reflect.ValueOf(record).Elem().Interface()); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// cleanup removes parquet files left by a previous local run.
func (p *ParquetOutput) cleanup() {
	fullPath := filepath.Join(p.basePath, p.folder)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return
	}
	err := filepath.Walk(fullPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".parquet" {
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		p.log.Warnf("Error cleaning up Parquet files: %v", err)
	}
}

func (p *ParquetOutput) createNewWriter(topic, partitionPath string) (*parquetFile, error) {
	var fw source.ParquetFile
	if p.cloudWriterFactory != nil {
		objectPath := path.Join(p.folder, topic, partitionPath, "data.parquet")
		cloudWriter, err := p.cloudWriterFactory.NewWriter(p.cloudBucketName, objectPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		fw = NewCloudParquetFile(cloudWriter)
	} else {
		fullPath := filepath.Join(p.basePath, p.folder, topic, partitionPath)
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return nil, err
		}
		var err error
		fw, err = local.NewLocalFileWriter(filepath.Join(fullPath, "data.parquet"))
		if err != nil {
			return nil, fmt.Errorf("failed to create local file writer: %w", err)
		}
	}

	record, err := newRecord(topic)
	if err != nil {
		return nil, err
	}
	pw, err := writer.NewParquetWriter(fw, record, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	return &parquetFile{writer: pw, file: fw}, nil
}

func (p *ParquetOutput) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, pf := range p.files {
		if err := pf.writer.WriteStop(); err != nil {
			p.log.Errorf("Error closing writer for key %s: %v", key, err)
			errs = append(errs, err)
		}
		if err := pf.file.Close(); err != nil {
			p.log.Errorf("Error closing file for key %s: %v", key, err)
			errs = append(errs, err)
		}
		delete(p.files, key)
	}
	return errors.Join(errs...)
}

// MultiOutput writes every message to all destinations.
type MultiOutput struct {
	outputs []OutputDestination
}

func NewMultiOutput(outputs ...OutputDestination) *MultiOutput {
	return &MultiOutput{outputs: outputs}
}

func (m *MultiOutput) WriteMessage(topic string, msg []byte) error {
	var errs []error
	for _, o := range m.outputs {
		errs = append(errs, o.WriteMessage(topic, msg))
	}
	return errors.Join(errs...)
}

func (m *MultiOutput) Close() error {
	var errs []error
	for _, o := range m.outputs {
		errs = append(errs, o.Close())
	}
	return errors.Join(errs...)
}

// NewOutputDestination builds every output the config enables. Files and console are
// exclusive, brokers are added on top.
func NewOutputDestination(ctx context.Context, cfg *models.Config, log logger.Logger) (OutputDestination, error) {
	var outputs []OutputDestination
	closeAll := func() {
		for _, o := range outputs {
			_ = o.Close()
		}
	}

	if cfg.KafkaEnabled {
		p, err := producers.NewSaramaProducer(cfg.KafkaBrokerList, log)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, p)
	}
	if cfg.MQTTEnabled {
		p, err := producers.NewMQTTProducer(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTQoS, log)
		if err != nil {
			closeAll()
			return nil, err
		}
		outputs = append(outputs, p)
	}

	switch cfg.OutputFormat {
	case "", "none":
	case "console":
		outputs = append(outputs, NewConsoleOutput(os.Stdout))
	case "json":
		outputs = append(outputs, NewJSONOutput(cfg.OutputPath, cfg.OutputFolder))
	case "csv":
		outputs = append(outputs, NewCSVOutput(cfg.OutputPath, cfg.OutputFolder))
	case "parquet":
		var factory cloudwriter.CloudWriterFactory
		if cfg.OutputDestination != "" && cfg.OutputDestination != "local" {
			switch cfg.CloudStorage.Provider {
			case "s3":
				f, err := cloudwriter.NewS3WriterFactory(ctx, cfg.CloudStorage.Region, cfg.CloudStorage.Endpoint)
				if err != nil {
					closeAll()
					return nil, fmt.Errorf("failed to create cloud writer factory: %w", err)
				}
				factory = f
			default:
				closeAll()
				return nil, fmt.Errorf("unsupported cloud storage provider: %s", cfg.CloudStorage.Provider)
			}
		}
		outputs = append(outputs, NewParquetOutput(cfg.OutputPath, cfg.OutputFolder, factory, cfg.CloudStorage.BucketName, log))
	default:
		closeAll()
		return nil, fmt.Errorf("unsupported output format: %s", cfg.OutputFormat)
	}

	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return NewMultiOutput(outputs...), nil
}
