// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// This file builds the server state: configuration, service clients, the
// two workflows and the Pub/Sub listeners that run ingestion jobs.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/workflow"
)

// StateManager holds the shared dependencies of the server.
type StateManager struct {
	config    *cloud.Config
	cloud     *cloud.ServiceClients
	ingestion *workflow.RecipeIngestionWorkflow
	manual    *workflow.ManualRecipeWorkflow
}

var state = &StateManager{}

// SetupOS points the configuration loader at ./configs and the "local"
// runtime unless the environment already names them.
func SetupOS() (err error) {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the configuration once.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState creates the service clients and both workflows, then starts the
// ingestion listeners.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}

	state.cloud = cloudClients

	deps, err := workflow.NewDependencies(config, cloudClients)
	if err != nil {
		panic(err)
	}
	if state.ingestion, err = workflow.NewRecipeIngestionWorkflow(deps); err != nil {
		panic(err)
	}
	if state.manual, err = workflow.NewManualRecipeWorkflow(deps); err != nil {
		panic(err)
	}
	slog.InfoContext(ctx, "workflows ready",
		"verify_recipe", config.Pipeline.VerifyRecipe,
		"store_videos", config.Pipeline.StoreVideos,
		"ingestion_topic", config.Pipeline.IngestionTopic)

	SetupListeners(ctx, config, cloudClients, state.ingestion)
}
