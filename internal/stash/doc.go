// Package stash layers time-to-live expiration and bounded LRU
// eviction on top of the hoststore primitives, behind a single
// get/set/delete façade.
package stash
