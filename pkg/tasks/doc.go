// Package tasks holds the task catalog driving managed resources through
// their lifecycle.
//
// Every resource kind gets three pipelines, registered as jobs named
// "<kind>.insert", "<kind>.update" and "<kind>.delete". Each pipeline brackets
// one entity task with the generic pre and post steps:
//
//	start_task -> create_resource_pre -> network.create_entity -> create_resource_post -> end_task
//
// The pre and post steps own the resource state machine. Entity tasks only
// talk to the backend, through the helper the orchestrator dispatch table
// resolves for the resource's container. What an entity task can do depends
// on the capability interfaces its kind implements: a kind that is not
// Updatable gets an update pipeline whose entity task is a no-op.
//
// The provider level "instance" kind fans out into one zone "server" job per
// availability zone and waits for all of them.
package tasks
