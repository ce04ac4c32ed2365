package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rewired-gh/tenderarb/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateBatch checks the batch as a whole. Individual filings and quotes
// are checked by the engine, which skips bad items and carries on.
func ValidateBatch(b *models.Batch) error {
	if b.Today.IsZero() {
		return errors.New("batch today must be set")
	}
	return nil
}

// checkFiling reports why a filing cannot be handed to extraction.
func checkFiling(f *models.Filing) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid filing: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("invalid filing: %s required", strings.Join(fields, " and "))
}

// DecodeBatch reads and validates a JSON batch.
func DecodeBatch(r io.Reader) (*models.Batch, error) {
	var b models.Batch
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if err := ValidateBatch(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadBatch reads a batch file.
func LoadBatch(path string) (*models.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch: %w", err)
	}
	defer f.Close()
	return DecodeBatch(f)
}
