// Package history keeps a journal of published snapshots.
//
// Each time the set of rules assigned to subjects changes, the recorder
// appends a Record to a SQLite database: the snapshot identity plus the
// ordered rule sources of every assigned subject. Unchanged passes are not
// written. Records older than the retention period are pruned on a cron
// schedule.
//
//	store, err := history.Open(history.StoreConfig{Path: "data/history.db"}, logger)
//	rec := history.NewRecorder(store, history.RecorderConfig{}, logger)
//	mgr.OnPublish(rec.Publish)
//	defer rec.Close()
package history
