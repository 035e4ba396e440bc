// Package cache keeps Marvel pages in Redis so repeated reads can be
// revalidated with If-None-Match instead of transferring the page again.
//
// A 304 still costs a call against the daily quota. The gateway rarely sends
// Expires, so entries live for DefaultTTL and Refresh slides them forward
// each time the gateway confirms them.
//
// Signed requests differ on every call, so Key drops ts, hash and apikey and
// keeps only a short fingerprint of the public key.
//
//	manager := cache.NewManager(redisClient)
//	key := cache.Key{Endpoint: "/v1/public/comics", QueryParams: req.URL.Query()}
//
//	entry, err := manager.Get(ctx, key)
//	if err == nil {
//		cache.SetIfNoneMatch(req, entry)
//	}
package cache
