package main

// Blank imports register the bundled components with the plugin registry.
import (
	_ "github.com/jmountifield/vector/internal/plugins/addfields"
	_ "github.com/jmountifield/vector/internal/plugins/blackhole"
	_ "github.com/jmountifield/vector/internal/plugins/console"
	_ "github.com/jmountifield/vector/internal/plugins/file"
	_ "github.com/jmountifield/vector/internal/plugins/filesink"
	_ "github.com/jmountifield/vector/internal/plugins/filter"
	_ "github.com/jmountifield/vector/internal/plugins/generator"
	_ "github.com/jmountifield/vector/internal/plugins/http"
	_ "github.com/jmountifield/vector/internal/plugins/kafka"
	_ "github.com/jmountifield/vector/internal/plugins/nats"
	_ "github.com/jmountifield/vector/internal/plugins/remap"
	_ "github.com/jmountifield/vector/internal/plugins/stdin"
	_ "github.com/jmountifield/vector/internal/plugins/swimlanes"
)
