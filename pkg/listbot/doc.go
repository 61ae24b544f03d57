// Package listbot embeds the listbot question answering pipeline in a Go
// program, without the HTTP service.
//
// The client connects to the document store and calls the embedding and
// completion providers you pass in. It keeps no per-conversation memory:
// the caller owns the Conversation and threads it through every Ask.
//
//	client, _ := listbot.New(ctx,
//	    listbot.WithValkey("localhost:6379", ""),
//	    listbot.WithEmbedder(myEmbedder),
//	    listbot.WithCompleter(myCompleter),
//	)
//	defer client.Close()
//
//	var conv listbot.Conversation
//	ans, conv, _ := client.Ask(ctx, "Who is the oldest person on the list?", conv)
//	ans, conv, _ = client.Ask(ctx, "How old is he?", conv)
//
// Corpus rows are loaded from a JSONL export with Client.Load.
package listbot
