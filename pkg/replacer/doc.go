// Package replacer implements partial animation replacer rules.
//
// A Replacer is an immutable, validated rule that either overrides joint
// local transforms with absolute values (frames) or softly constrains them to
// a range (limits). Which channels are touched is selected per rule by the
// rotate, translate and scale flags. A Replacer only applies to a subject
// when its compiled condition evaluates to true.
//
// # Rule Files
//
// Rules are authored as JSON or YAML documents:
//
//	priority: 10
//	rotate: true
//	conditions:
//	  - 'actor.weapon_drawn == false'
//	refs:
//	  sword: "Skyrim.esm|0x12EB7"
//	frames:
//	  - - name: "NPC R Hand [RHnd]"
//	      rotate: [[1, 0, 0], [0, 1, 0], [0, 0, 1]]
//	      translate: {x: 0, y: 0, z: 0}
//	      scale: 1
//	limits:
//	  - name: "NPC Head [Head]"
//	    rotate_low: [-30, -45, -10]
//	    rotate_high: [30, 45, 10]
//
// Limit angles are written in degrees and held in radians in memory.
//
// # Soft Clamping
//
// Limits use Saturate, a tanh curve that keeps values strictly inside the
// bounds while staying continuous, so constrained joints never visibly snap.
// A limit whose low and high bounds are equal leaves that channel unchanged.
//
// # Conditions
//
// Condition strings are compiled by a ConditionParser supplied at
// construction. Compiled predicates are chained with logical AND. If any
// expression fails to compile the whole chain is discarded and the rule
// never matches.
package replacer
