// Package options implements typed node options and their construction from
// textual member vectors. Builtin node types declare their own options
// structs embedding Base; externally resolved types use the schema-driven
// Bag validated against the type's member descriptions.
package options

import (
	"github.com/c360/flowkit/errors"
)

// APIVersion is the options ABI tag. Every Options value crossing a runtime
// boundary must carry it; type-specific sub-API tags are validated by the
// type's Open hook.
const APIVersion uint16 = 1

// Options is the contract every per-type options struct satisfies. The
// runtime treats options as opaque beyond the version tags.
type Options interface {
	OptionsAPIVersion() uint16
	OptionsSubAPIVersion() uint16
}

// Base carries the leading version tags. Embed it in type-specific options
// structs:
//
//	type TimerOptions struct {
//	    options.Base
//	    Interval types.IntRange
//	}
type Base struct {
	Version uint16
	SubAPI  uint16
}

// NewBase returns a Base tagged with the current API version and the given
// sub-API.
func NewBase(subAPI uint16) Base {
	return Base{Version: APIVersion, SubAPI: subAPI}
}

// OptionsAPIVersion implements Options.
func (b Base) OptionsAPIVersion() uint16 { return b.Version }

// OptionsSubAPIVersion implements Options.
func (b Base) OptionsSubAPIVersion() uint16 { return b.SubAPI }

// Empty is the options value used when a node is instantiated with neither
// explicit nor default options.
var Empty Options = Base{Version: APIVersion}

// CheckAPI validates the options API-version tag. A nil value passes; the
// caller substitutes defaults afterwards.
func CheckAPI(o Options) error {
	if o == nil {
		return nil
	}
	if o.OptionsAPIVersion() != APIVersion {
		return errors.WrapInvalid(errors.ErrInvalidAPIVersion, "Options", "CheckAPI",
			"options api version tag")
	}
	return nil
}

// CheckSubAPI validates both the API-version tag and the type-specific
// sub-API tag. Type Open hooks use this before downcasting.
func CheckSubAPI(o Options, subAPI uint16) error {
	if err := CheckAPI(o); err != nil {
		return err
	}
	if o != nil && o.OptionsSubAPIVersion() != subAPI {
		return errors.WrapInvalid(errors.ErrInvalidAPIVersion, "Options", "CheckSubAPI",
			"options sub-api tag")
	}
	return nil
}
