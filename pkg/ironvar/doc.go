// Package ironvar implements ironbar's named variables: an in-memory
// publish/subscribe store that dynamic strings reference with #name.
//
// Variables can be set programmatically, fed from files with WatchFile, and
// persisted across restarts by attaching a Persister such as SQLiteStore.
package ironvar
