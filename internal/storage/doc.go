// Package storage contains the networked document stores the archiver can
// write to: MongoDB (the default for shared crawls) and PostgreSQL.
//
// Both implement archive.Store. A batch is written with one round trip;
// records refused individually, such as duplicate ids, are reported as
// model.RecordError while the rest of the batch stays committed.
//
// The local SQLite store lives in package database.
package storage
