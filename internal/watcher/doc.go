// Package watcher refreshes the mod list when archives in the mods
// directory change.
//
// Events are debounced: copying a large archive produces many writes, and
// an update replaces one archive with another. A single non-forced refresh
// runs once the directory has been quiet for the debounce period.
//
// Example usage:
//
//	w, err := watcher.New("/app/mods", svc, 2*time.Second, logger)
//	if err != nil {
//		return err
//	}
//	if err := w.Start(ctx); err != nil {
//		return err
//	}
//	defer w.Stop()
package watcher
