// Package staging is the runtime half of a bake pass.
//
// The bake tool adds a registration file to every package that has
// designated members. Its init function calls Register with a function
// that adds each member to a Registry under its canonical key. One driver
// program imports all of those packages and calls Main, so the whole pass
// runs in a single process: package state is shared and every initializer
// runs once. Main reads the request, binds and invokes each requested
// member exactly once in request order, encodes the results with package
// literal and writes a Report back.
package staging
