package di

import (
	"killrvideo/application/commands/bus"
	"killrvideo/application/fanout"
	querybus "killrvideo/application/queries/bus"
	"killrvideo/infrastructure/config"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/interfaces/http/rest"
	"killrvideo/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Registry    *schema.Registry
	Session     abstractions.Session
	Coordinator *fanout.Coordinator
	CommandBus  *bus.CommandBus
	QueryBus    *querybus.QueryBus
	Router      *rest.Router
	MetricsSink *observability.CloudWatchSink
}
