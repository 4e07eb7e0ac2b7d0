// Package storage manages the JSON documents in the travel-map data
// directory.
//
// The storage package handles:
//   - Reading and writing indented JSON documents
//   - Atomic writes using a temporary file and rename
//   - Timestamped backups before destructive rewrites
//   - A cross-process lock so two runs never write the same directory
//
// Usage:
//
//	store, err := storage.NewManager(cfg.Output.DataDirectory, log)
//	if err != nil {
//		return err
//	}
//	unlock, err := store.Lock()
//	if err != nil {
//		return err
//	}
//	defer unlock()
//
//	if _, err := store.Backup("travel-data.json"); err != nil {
//		return err
//	}
//	err = store.WriteJSON("travel-data.json", data)
package storage
