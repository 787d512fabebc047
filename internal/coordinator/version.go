package coordinator

import (
	"fmt"
	"strconv"
)

// Validation is the outcome of a compatibility check.
type Validation struct {
	Message   string
	Succeeded bool
}

// ValidateExtensionVersion checks the version a client was built for against
// the running major.minor version. A missing, zero or non-numeric version
// comes from a connector too old to send one.
func ValidateExtensionVersion(requested, current string) Validation {
	if f, err := strconv.ParseFloat(requested, 64); err != nil || f == 0 {
		return Validation{
			Message: fmt.Sprintf("Please update the Autodesk Forma Omniverse Connector to version %s", current),
		}
	}

	if requested != current {
		return Validation{
			Message: fmt.Sprintf("Version %s of the Omniverse Autodesk Forma Link extension is required for this connector, but version %s is installed.", requested, current),
		}
	}

	return Validation{Message: "Extension version is correct.", Succeeded: true}
}
