package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		protectedResourcesPolicy(),
		instanceZonesPolicy(),
		resourceNamingPolicy(),
	}
}

func protectedResourcesPolicy() Policy {
	return Policy{
		Name:        "protected-resources",
		Description: "Resources tagged protected cannot be updated or deleted",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package beehive.policies.protected

import rego.v1

deny contains violation if {
	input.operation in {"update", "delete"}
	some tag in input.resource.tags
	tag == "protected"
	violation := {
		"message": sprintf("%s %s is protected and cannot be %sd", [input.kind, input.resource.name, input.operation]),
	}
}
`,
	}
}

func instanceZonesPolicy() Policy {
	return Policy{
		Name:        "instance-zones",
		Description: "A provider instance must name exactly one main zone",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package beehive.policies.zones

import rego.v1

main_zones := [z | some z in input.params.zones; z.main == true]

deny contains violation if {
	input.operation == "insert"
	input.kind == "instance"
	count(main_zones) != 1
	violation := {
		"message": sprintf("instance %s must have exactly one main zone, found %d", [input.params.name, count(main_zones)]),
	}
}

deny contains violation if {
	input.operation == "insert"
	input.kind == "instance"
	some z in input.params.zones
	count(z.orchestrators) == 0
	violation := {
		"message": sprintf("zone %s has no orchestrator", [z.name]),
	}
}
`,
	}
}

func resourceNamingPolicy() Policy {
	return Policy{
		Name:        "resource-naming",
		Description: "Resource names should be lowercase and at most 63 characters",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package beehive.policies.naming

import rego.v1

deny contains violation if {
	input.operation == "insert"
	name := input.params.name
	lower(name) != name
	violation := {
		"message": sprintf("name '%s' should be lowercase", [name]),
	}
}

deny contains violation if {
	input.operation == "insert"
	name := input.params.name
	count(name) > 63
	violation := {
		"message": sprintf("name '%s' is longer than 63 characters", [name]),
		"severity": "error",
	}
}
`,
	}
}
