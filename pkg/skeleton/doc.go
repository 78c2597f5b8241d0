// Package skeleton provides the joint hierarchy that replacer rules edit.
//
// A Tree is a named hierarchy of joints. Each Joint carries a local Transform
// (rotation matrix, translation vector, uniform scale) relative to its parent
// and a derived world Transform computed by UpdateWorld.
//
// # Joint Lookup
//
// Rules never own joint storage. They reach joints through the JointTree
// interface by name and mutate the local transform in place:
//
//	tree := skeleton.NewTree("NPC Root [Root]")
//	_ = tree.AddJoint("NPC Root [Root]", "NPC Spine [Spn0]", skeleton.IdentityTransform())
//
//	if joint, ok := tree.FindJoint("NPC Spine [Spn0]"); ok {
//	    joint.Local.Scale = 1.1
//	}
//
//	tree.UpdateWorld()
//
// # Euler Angles
//
// Rotation clamping decomposes matrices into Z-X-Y Euler angles (see
// Mat3.EulerZXY and FromEulerZXY). The X-Y-Z readout (Mat3.EulerXYZ) is kept
// for diagnostics only.
package skeleton
