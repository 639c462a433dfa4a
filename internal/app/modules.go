package app

import (
	"io"

	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/modules/event"
	"github.com/vk/seqcore/modules/http_request"
	"github.com/vk/seqcore/modules/print"
	"github.com/vk/seqcore/modules/property"
	"github.com/vk/seqcore/modules/socketio"
	"github.com/vk/seqcore/modules/spawn"
)

// coreModules is the definitive list of all track modules that are compiled
// into the seqcore binary. print writes to outW.
func coreModules(outW io.Writer) []registry.Module {
	return []registry.Module{
		&spawn.Module{},
		&property.Module{},
		&event.Module{},
		&print.Module{Out: outW},
		&socketio.Module{},
		&http_request.Module{},
	}
}
