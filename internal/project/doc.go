// Package project provides the search-as-you-type workspace for scour.
//
// A Project binds one workspace root to a search engine and a scheduler.
// Every call to Search starts a new generation and supersedes the previous
// one; results arrive asynchronously through the DeliverFunc given to Open.
//
// # Architecture
//
// The package is organized around these core components:
//
//   - VFS (vfs): file system abstraction, OS-backed or in-memory
//   - Filter (filter): which directories are descended and which files read
//   - Walker (walker): lazy depth-first sequence of candidate files
//   - Search (search): line matcher, file scanner and the engine composing them
//   - Scheduler (scheduler): generation numbers, cancellation, delivery
//
// # Quick Start
//
//	p, err := project.Open("/path/to/workspace", config.Default(),
//	    func(r scheduler.Result) {
//	        for _, m := range r.Matches {
//	            fmt.Println(m)
//	        }
//	    })
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	p.Search("search_items")
//
// # Live Configuration
//
// WithConfigFile watches the settings file and applies changes to searches
// started afterwards. Running searches keep the settings they started with.
package project
