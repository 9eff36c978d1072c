// Package validation checks configuration structs and request values.
//
// Struct validation is driven by `validate` tags through
// go-playground/validator. The fluent Validator collects field errors for
// checks that cannot be expressed as tags:
//
//	v := validation.New().
//		Required("keys.file", cfg.Keys.File).
//		OneOf("keys.reload", cfg.Keys.Reload, []string{"watch", "per_request", "manual"})
//	if err := v.Validate(); err != nil {
//		return err
//	}
//
// Both paths report failures as INVALID_PARAMETER AppErrors carrying the
// offending fields under details["fields"].
package validation
