package processor

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var manifestHeader = []string{"SNO", "Product Name", "Input Image URL", "Output Image URL"}

// Record is one successfully processed image.
type Record struct {
	SNO            int
	ProductName    string
	InputImageURL  string
	OutputImageURL string
}

// Result is the outcome of one image: a Record or the error that skipped it.
type Result struct {
	Record Record
	Err    error
}

// Successful keeps the records of the results that have no error, in order.
func Successful(results []Result) []Record {
	out := make([]Record, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Record)
		}
	}
	return out
}

// WriteManifest writes records as CSV to a new file in dir. A header is always written.
func WriteManifest(dir, orderID string, records []Record) (string, error) {
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("order-%s-manifest.csv", orderID)))
	if err != nil {
		return "", err
	}
	w := csv.NewWriter(f)
	_ = w.Write(manifestHeader)
	for _, r := range records {
		_ = w.Write([]string{strconv.Itoa(r.SNO), r.ProductName, r.InputImageURL, r.OutputImageURL})
	}
	w.Flush()
	err = w.Error()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return f.Name(), nil
}
