// package cache memoizes upstream responses in two tiers.
//
// The fast tier is an in-process FIFO-bounded map; the durable tier is a SQLite table
// or a LevelDB directory. [TieredCache] composes them: reads try fast then durable,
// promoting durable hits, and writes go to both. Durable failures are logged and the
// cache keeps working from memory alone.
package cache
