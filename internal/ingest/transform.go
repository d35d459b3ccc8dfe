package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/apperr"
	"github.com/ariefcatur/go-image-orders/internal/orders"
)

var (
	errBadSNO       = errors.New("sno must be a number >= 1")
	errNoProduct    = errors.New("product_name is empty")
	errNoImageURLs  = errors.New("input_image_urls has no usable url")
	errDuplicateSNO = errors.New("sno repeated within the submission")
)

// Transformer turns parsed records into SKU drafts, dropping rows that fail validation.
type Transformer struct {
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewTransformer(log logrus.FieldLogger) *Transformer {
	return &Transformer{validate: validator.New(), log: log}
}

// Transform keeps every valid row, tagging it with requestID. Dropped rows are logged.
// It fails with NO_VALID_SKU_DATA when nothing survives.
func (t *Transformer) Transform(records []Record, requestID string) ([]orders.SKUDraft, int, error) {
	drafts := make([]orders.SKUDraft, 0, len(records))
	seen := make(map[int]bool, len(records))
	dropped := 0

	for _, rec := range records {
		d, err := t.row(rec, requestID)
		if err == nil && seen[d.SNO] {
			err = errDuplicateSNO
		}
		if err != nil {
			dropped++
			t.log.WithFields(logrus.Fields{"line": rec.Line, "request_id": requestID}).
				WithError(err).Warn("dropping sku row")
			continue
		}
		seen[d.SNO] = true
		drafts = append(drafts, d)
	}

	if len(drafts) == 0 {
		return nil, dropped, apperr.Validation(apperr.CodeNoValidSKUData, "No valid SKU data found", nil)
	}
	return drafts, dropped, nil
}

func (t *Transformer) row(rec Record, requestID string) (orders.SKUDraft, error) {
	sno, err := ParseSNO(rec.Fields[ColSNO])
	if err != nil {
		return orders.SKUDraft{}, err
	}
	name := strings.TrimSpace(rec.Fields[ColProductName])
	if name == "" {
		return orders.SKUDraft{}, errNoProduct
	}
	urls := SplitImageURLs(rec.Fields[ColInputImageURLs])
	if len(urls) == 0 {
		return orders.SKUDraft{}, errNoImageURLs
	}

	d := orders.SKUDraft{SNO: sno, ProductName: name, InputImageURL: urls, RequestID: requestID}
	if err := t.validate.Struct(d); err != nil {
		return orders.SKUDraft{}, fmt.Errorf("draft invalid: %w", err)
	}
	return d, nil
}

// ParseSNO accepts any finite number >= 1 that fits the BIGINT column and truncates it to an
// int ("2.0" -> 2).
func ParseSNO(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", errBadSNO, s)
	}
	return int(f), nil
}

// SplitImageURLs splits on ',', trims each token, strips one leading and one trailing '"',
// removes whitespace inside the token and drops empty tokens.
func SplitImageURLs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		tok = strings.TrimPrefix(tok, `"`)
		tok = strings.TrimSuffix(tok, `"`)
		tok = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
