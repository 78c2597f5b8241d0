// Package scene loads a static description of subjects and their
// skeletons from YAML. The CLI uses it as the subject source and joint
// tree provider when no host application is attached.
//
//	refs:
//	  faction.guard: guard
//	controlled: player
//	skeleton:
//	  root: root
//	  joints:
//	    - {name: spine, parent: root, translate: [0, 1, 0]}
//	    - {name: neck, parent: spine, rotate: [10, 0, 0]}
//	subjects:
//	  - id: player
//	    attributes: {sex: 1, faction: guard}
//	  - id: npc
//	    visible: false
//
// Joint rotations are Z-X-Y Euler angles in degrees. Subjects without
// their own skeleton get a copy of the shared one.
package scene
