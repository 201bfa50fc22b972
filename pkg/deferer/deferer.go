// Package deferer provides a way to use defer calls with log.Fatal and
// os.Exit. Neither runs pending defers, but the commands need to close the
// state store and cloud connections before leaving with a specific status.
package deferer

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"
)

var exit = os.Exit

// Deferer holds a slice of deferred functions and an optional pointer to the
// caller's Deferer
type Deferer struct {
	caller *Deferer
	fns    []func()
	ran    bool
}

// NewDeferer returns a pointer to a new Deferer instance with the function
// slice initialized and the optional caller set
func NewDeferer(d *Deferer) *Deferer {
	return &Deferer{
		caller: d,
		fns:    make([]func(), 0),
	}
}

// Defer adds to the array of defered function calls
func (d *Deferer) Defer(f func()) {
	d.fns = append(d.fns, f)
}

// Run calls each function in the defered array in reverse order. Common usage
// is to call `defer d.Run()` after creating the Deferer instance
func (d *Deferer) Run() {
	if d.ran {
		return
	}

	for i := len(d.fns) - 1; i >= 0; i-- {
		d.fns[i]()
	}
	d.ran = true
}

// Exit runs each set of deferred functions, walking up the caller chain,
// and exits the process with code
func (d *Deferer) Exit(code int) {
	d.unwind()
	exit(code)
}

// Fatal runs each set of deferred functions, walking up the caller chain,
// finishing with a call to log.Fatal()
func (d *Deferer) Fatal(v ...interface{}) {
	d.unwind()
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		log.Fatal(v...)
		return
	}
	args := []interface{}{fmt.Sprintf("%s:%d: ", filepath.Base(file), line)}
	log.Fatal(append(args, v...)...)
}

// FatalWithFields accepts additional logging fields for the fatal log
func (d *Deferer) FatalWithFields(fields log.Fields, v ...interface{}) {
	d.unwind()
	if _, file, line, ok := runtime.Caller(1); ok {
		fields["file"] = filepath.Base(file)
		fields["line"] = line
	}
	log.WithFields(fields).Fatal(v...)
}

func (d *Deferer) unwind() {
	d.Run()
	if d.caller != nil {
		d.caller.unwind()
	}
}
