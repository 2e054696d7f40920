package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation by its
// configuration key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: %s", keyOf(fe.Namespace()), describe(fe)))
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(msgs...))
}

// ValidateDirectories checks that the input directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s\nHint: use --data-dir to point at the raw extracts", c.DataDir)
	}
	if _, err := os.Stat(c.ReferenceDir); os.IsNotExist(err) {
		return fmt.Errorf("reference directory does not exist: %s\nHint: run `mktwh reference fetch` first", c.ReferenceDir)
	}
	return nil
}

// fieldKeys maps struct namespaces to configuration keys.
var fieldKeys = map[string]string{
	"Config.DataDir":             "data_dir",
	"Config.ReferenceDir":        "reference_dir",
	"Config.WarehouseDir":        "warehouse_dir",
	"Config.StatePath":           "state_path",
	"Config.OutputFormat":        "output",
	"Config.Window.Start":        "window.start",
	"Config.Window.End":          "window.end",
	"Config.Reconcile.Tolerance": "reconcile.tolerance",
	"Config.Reference.URL":       "reference.url",
	"Config.Reference.Retries":   "reference.retries",
	"Config.Reference.Timeout":   "reference.timeout",
	"Config.Reference.Codes":     "reference.codes",
}

func keyOf(ns string) string {
	if k, ok := fieldKeys[ns]; ok {
		return k
	}
	if i := strings.Index(ns, "["); i > 0 {
		if k, ok := fieldKeys[ns[:i]]; ok {
			return k + ns[i:]
		}
	}
	return strings.TrimPrefix(ns, "Config.")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gtefield":
		return "must not be before window.start"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "len":
		return fmt.Sprintf("must be %s characters, got %q", fe.Param(), fe.Value())
	case "uppercase":
		return fmt.Sprintf("must be uppercase, got %q", fe.Value())
	case "url":
		return fmt.Sprintf("must be a URL, got %q", fe.Value())
	case "min":
		return "must have at least " + fe.Param() + " entries"
	default:
		return "failed " + fe.Tag()
	}
}
