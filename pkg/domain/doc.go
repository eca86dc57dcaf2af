package domain

// domain package contains the Domain Models of the netsec training pipeline.
//
// `domain/ENTITY.go` has high-level entities (Domain Model types) and functions.
// For example, `domain/artifact.go` contains artifacts passed between stages.
//
// `domain/STAGE` directory contains the implementation of each stage.
//
// # Stages
//
// A pipeline run goes through 4 stages in fixed order. Each stage reads only the artifact of
// the previous stage and its own configuration.
//
// - `ingestion`: Exports documents from the document store as a table,
// persists it as the feature store, and splits it into train and test sets.
//
// - `validation`: Checks both splits against the declared schema,
// and detects distributional drift between them. Writes a drift report.
//
// - `transformation`: Separates the target column, recodes labels,
// fits the imputer on train features only, and persists transformed matrices and the fitted preprocessor.
//
// - `trainer`: Tunes each candidate classifier with cross-validated grid search,
// picks the best by the held-out score, and persists the bundle (preprocessor + model).
//
// And others:
//
// - `orchestrator`: Runs stages in order, and records the run manifest.
//
// - `layout`: Where each stage writes its outputs in a run directory.
