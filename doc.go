// Package iconcache extracts icons for files and serves them through a
// two-tier cache.
//
// A [Service] answers every lookup with a displayable bitmap. The lookup path
// checks an in-process LRU first, then a PNG store on disk, then the
// extraction chain, and finally falls back to a synthesized placeholder.
// Results are written back to both tiers.
//
// # Quick Start
//
//	svc, err := iconcache.New("/var/cache/iconcache")
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	icon := svc.Icon(ctx, "/usr/bin/firefox", 48)
//	png, err := icon.PNG()
//
// # Keys
//
// Entries are keyed by the normalized absolute path, the requested size and
// the file's modification time. Touching a file therefore invalidates its
// cached icons; stale files stay on disk until [Service.Cleanup] removes them.
//
// Lookups for files that do not exist are cached as file-type placeholders
// under modification time zero, so repeated requests for a bad path do not
// repeat extraction. Creating the file later changes the key.
//
// # Preloading
//
// [Service.Preload] queues lookups on a small fixed worker pool and returns
// immediately.
package iconcache
