// Package policy gates job submissions with Open Policy Agent rules.
//
// Every resource operation submitted through the task manager is described
// as an Input (operation, kind, acting user, permission path, the stored
// resource and the submitted params) and evaluated against the enabled Rego
// policies. A policy contributes violations through a "deny" set rule in its
// package:
//
//	package beehive.policies.protected
//
//	import rego.v1
//
//	deny contains msg if {
//		input.operation == "delete"
//		"protected" in input.resource.tags
//		msg := sprintf("resource %s is protected", [input.resource.name])
//	}
//
// Violations of error severity reject the submission; warnings are reported
// and let it through.
//
// # Built-in Policies
//
//   - protected-resources: no update or delete of resources tagged "protected"
//   - instance-zones: a provider instance names exactly one main zone
//   - resource-naming: lowercase names of at most 63 characters (warning)
//
// # Custom Policies
//
// Rego files are loaded from files or directories with Engine.LoadPolicies.
// A Loader can watch those paths and reload the engine when a file changes:
//
//	loader := policy.NewLoader(logger)
//	err := loader.Watch(ctx, paths, eng.Replace)
package policy
