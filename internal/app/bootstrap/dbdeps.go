// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/chimeo/internal/app/store/memstore"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app. Exactly one of
// MongoDatabase and Memory is set, per store_backend.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Memory        *memstore.Backend

	// app is filled by Startup and read by BuildHandler and Shutdown.
	app *App
}
