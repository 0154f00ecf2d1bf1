// Package store provides the remote tree-structured key-value store used by
// gauge dashboards, backed by Redis.
//
// # Overview
//
// The store is the single authoritative copy of every KPI record and the
// priorities board. Dashboard processes never treat their in-memory copy as
// authoritative: they subscribe to a path, apply whatever snapshot arrives,
// and write through every local change. Conflicts between clients are
// resolved by the store alone (last write wins).
//
// # Paths
//
// A path is either a root ("kpis", "board") or a root plus one child
// segment ("kpis/01J9Z..."). Deeper addressing is not supported.
//
//	root        -> Redis hash  gauge:{project}:node:{root}
//	root/child  -> hash field  {child} of that hash, holding JSON
//
// Reading a root yields a JSON object with one member per child. A root
// exists once it has at least one child.
//
// # Change notifications
//
// Every write publishes a Change on gauge:{project}:changes:{root} in the
// same MULTI/EXEC as the data mutation, so subscribers re-read in commit order.
//
// # Usage Example
//
//	client, err := store.NewClient(&redis.Options{Addr: "localhost:6379"}, "plant-a")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	id := client.GenerateKey()
//	_ = client.Set(ctx, store.Join("kpis", id), kpi)
//
//	sub, _ := client.Subscribe(ctx, "kpis")
//	defer sub.Close()
//	for snap := range sub.Events() {
//		children, _ := snap.Children()
//		fmt.Println(len(children), "records")
//	}
package store
