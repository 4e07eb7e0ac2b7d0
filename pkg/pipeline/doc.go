// Package pipeline ties the Graph API client, caption extraction and the
// document store together.
//
// A fetch runs in four steps:
//
//  1. read the account profile
//  2. page through every post, recording each page in a checkpoint
//  3. locate every post on a worker pool
//  4. back up and replace the travel-data, summary and profile documents
//
// Fetches stopped early by MaxPages or by an error keep their checkpoint
// and leave the documents untouched. Clean and Stats work on the stored
// travel-data document and need no network access.
//
//	p := pipeline.New(cfg, store, aggregator,
//		pipeline.WithSource(client),
//		pipeline.WithCheckpoints(checkpoints),
//	)
//	report, err := p.Fetch(ctx, pipeline.FetchOptions{Resume: true})
package pipeline
