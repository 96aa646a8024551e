// Package dynamic implements reactive dynamic strings.
//
// A dynamic string is a template made of static text, command expressions
// wrapped in {{ }} and variable references prefixed with #. Every dynamic
// segment is driven by its own producer goroutine. Producers write into a
// shared slot table and each write yields a complete, consistent render that
// is delivered to a single callback on the engine's MainLoop.
//
//	engine, _ := dynamic.NewEngine(dynamic.Options{Runner: script.NewRunner()})
//	h, _ := engine.Subscribe(ctx, "{{date +%H:%M}} #volume", func(s string) bool {
//		label.SetText(s)
//		return true
//	})
//	defer h.Close()
//
// Syntax:
//
//	{{cmd}}    run cmd and render its output; "{{1000:date}}" polls every second
//	#name      render the current value of variable name
//	##         a literal #
//
// Command bodies are opaque, so a # inside {{ }} is plain text.
package dynamic
