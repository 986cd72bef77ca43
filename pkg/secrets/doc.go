// Package secrets resolves ${secret:NAME} references in configuration.
//
// Credentials such as the git catalog token or OTLP collector headers should
// not live in the config file itself. Instead the file holds a reference:
//
//	catalog:
//	  git:
//	    auth:
//	      type: token
//	      token: ${secret:catalog-git-token}
//
// A Resolver looks the name up in its providers, in order. EnvProvider reads
// ADJUDICATOR_SECRET_CATALOG_GIT_TOKEN; FileProvider reads a file named
// catalog-git-token from a directory, the layout Kubernetes uses for mounted
// secrets. File secrets must not be readable by group or others.
package secrets
