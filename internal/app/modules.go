package app

import (
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/modules/foreach"
	"github.com/specialistvlad/pipegrid/modules/script"
)

// coreModules is the definitive list of all task modules that are compiled
// into the pipegrid binary.
var coreModules = []registry.Module{
	&script.Module{},
	&foreach.Module{},
}

// CoreModules returns a copy of the built-in modules, for callers that add
// their own task types on top.
func CoreModules() []registry.Module {
	return append([]registry.Module(nil), coreModules...)
}
