// Package mongo provides a MongoDB implementation of store.Store using
// the official mongo-driver.
//
// The caller owns the *mongo.Database lifecycle; the store never closes
// it. Optimistic concurrency on conversations is enforced with a
// version-conditioned replace, and workflow counters are maintained with
// $inc so concurrent engine instances never lose increments.
package mongo
