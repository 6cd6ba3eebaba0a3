// Package config defines the format-agnostic pipeline model and the Loader
// interface implemented by the format adapters.
//
// A config.Pipeline is the single source of truth for the pipeline
// controller. Values inside it are kept raw (untemplated): the controller
// resolves `${{parameters.X}}` tokens once parameters are known. Concrete
// loaders for YAML and HCL live in separate packages.
package config
