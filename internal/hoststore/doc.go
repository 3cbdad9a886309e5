// Package hoststore provides the storage primitives the cache façade is
// built on: synchronous string key/value stores and an asynchronous
// response-object store keyed by URL. Implementations are safe for
// concurrent use.
package hoststore
