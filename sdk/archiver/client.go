package archiver

import (
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

// NewArchiver creates an archiver with the specified options.
// It applies default options, selects the device source for the current
// operating system and prepares the fleet manager. Nothing is attached until
// Run is called.
//
// opts ...contracts.Option: A variadic list of option functions to customize the archiver.
//
// Returns:
//   - contracts.Archiver: An archiver ready to Run.
//   - error: An error if the options are invalid or the device source cannot be created.
func NewArchiver(opts ...contracts.Option) (contracts.Archiver, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	return newArchiver(options)
}
