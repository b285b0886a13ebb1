package remotecontrol

import (
	"context"
	"fmt"

	"github.com/hearthlink/hearth-core/internal/feature"
	"github.com/hearthlink/hearth-core/internal/infrastructure/mqtt"
)

// Name is the feature's registry name and topic namespace segment.
const Name = "remotecontrol"

// Desc returns the feature descriptor. Remote control is opt-in.
func Desc() feature.Descriptor {
	return feature.Descriptor{Name: Name, DefaultOn: false}
}

// New constructs the feature pair. Satisfies feature.Constructor.
func New(ctx context.Context, deps feature.Deps, transport feature.Transport, exchange *feature.Exchange) (feature.APIHalf, feature.IngestionHalf, error) {
	stream, err := transport.Listen(mqtt.Topics{}.UplinkWildcard(Name), 1)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to uplink topic: %w", err)
	}

	repo := NewMongoRepository(deps.DB)
	log := deps.Logger.With("feature", Name)

	ingestion := &Ingestion{
		repo:      repo,
		resolver:  deps.Resolver,
		publisher: transport,
		stream:    stream,
		exchange:  exchange,
		log:       log,
	}
	api := &API{
		repo:     repo,
		exchange: exchange,
		log:      log,
	}
	return api, ingestion, nil
}
