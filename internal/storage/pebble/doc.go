// Package pebblestore is a thin wrapper around Pebble used by the relay's
// channel logs: in-memory filesystem, unsynced batches, range deletes for
// retention and a metrics hook feeding the stats endpoint.
//
//	db, err := pebblestore.Open(pebblestore.Options{InMemory: true})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(b)
//	b.Close()
//
//	v, _ := db.Get([]byte("k"))
package pebblestore
