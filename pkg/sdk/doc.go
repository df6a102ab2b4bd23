// Package zoomgraph is an embedded Go client for published zoomgraph snapshots.
//
// It reads the Hierarchy Store directly (Valkey, Redis or an embedded Badger
// directory) and answers the same zoom-level queries as the HTTP service,
// without running a server.
//
//	client, _ := zoomgraph.New(ctx, zoomgraph.WithValkey("localhost:6379", ""))
//	defer client.Close()
//
//	ov, _ := client.Overview()
//	d, _ := client.ExpandDomain(ov.Domains[0].ID)
//	page, _ := client.ExpandTopic(d.Topics[0].ID, 100, 0)
//	e, _ := client.GetEntity(page.Entities[0].ID)
//
// The client loads the current run once in New; call Refresh to pick up a
// newer run.
package zoomgraph
