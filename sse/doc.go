// Package sse streams debug events to editors over Server-Sent Events.
//
// A Hub fans published events out to connected clients. Each client may
// filter by event type with glob patterns; a client without a filter gets
// everything.
//
//	hub := sse.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//	router.GET("/v1/events", func(c *gin.Context) {
//	    sse.ServeSSE(hub, c.Writer, c.Request, uuid.NewString())
//	})
//	hub.Publish(sse.MustEvent(sse.EventPass, meta))
package sse
