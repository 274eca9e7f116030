// Package model defines the values that flow through the crawl loop.
//
// This package contains the following main types:
//   - URL: a crawl target in canonical, scheme-stripped form
//   - Entry: a frontier entry tagged internal or external
//   - FetchResult / FetchFailure: the two outcomes of a fetch attempt
//   - Record: a fetched page on its way to the document store
//
// Models live in their own package because the frontier, fetcher, archiver and
// coordinator all exchange them; centralizing them prevents import cycles.
package model
