// Package logger provides module-scoped loggers over the go-ethereum log package.
package logger

import (
	"github.com/ethereum/go-ethereum/log"
)

// Instance is embedded by components that log under their own module name.
type Instance struct {
	Log log.Logger
}

func New(name ...string) Instance {
	if len(name) == 0 {
		return Instance{
			Log: log.New(),
		}
	}
	return Instance{
		Log: log.New("module", name[0]),
	}
}
