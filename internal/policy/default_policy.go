package policy

// decisionQuery is the rule every delivery policy must define.
const decisionQuery = "data.outreach.delivery.decision"

const defaultPolicy = `package outreach.delivery

import future.keywords.if
import future.keywords.in

default decision = {"allow": false, "reason": "recipient domain not in allow list"}

decision = {"allow": false, "reason": sprintf("recipient domain %s is blocked", [input.recipient_domain])} if {
	input.recipient_domain in input.blocked_domains
}

decision = {"allow": true, "reason": "recipient domain allowed"} if {
	not input.recipient_domain in input.blocked_domains
	domain_allowed
}

domain_allowed if count(input.allowed_domains) == 0

domain_allowed if input.recipient_domain in input.allowed_domains
`
