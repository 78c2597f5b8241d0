// Package manager owns the active rule set: it loads replacer rules from
// the file system, evaluates them against live subjects and publishes the
// result as an immutable snapshot that the apply pass reads each tick.
//
// # Core Components
//
// Manager holds the priority-ordered rule collection and an index from
// source path to position. Load, reload and removal all go through the
// same lock as evaluation, so an evaluation pass always sees a consistent
// collection.
//
// Loader discovers rule files under a root directory (one subdirectory per
// group) and decodes them with size and encoding checks.
//
// FileWatcher monitors the rule directories and reports per-file changes,
// debounced per path.
//
// Rescanner runs a periodic full directory reload on a cron schedule to
// pick up changes the watcher missed.
//
// # Evaluation and Apply
//
// Evaluate walks every subject and, for each one, every rule in priority
// order. A rule is assigned when its condition holds and none of its
// joints has already been claimed by a higher priority rule for that
// subject. The assignment is published atomically; readers holding an older
// snapshot keep a consistent view until they drop it.
//
//	mgr, err := manager.New(cfg, registry, condition.NewParser(logger), logger)
//	if err != nil {
//	    return err
//	}
//	if _, err := mgr.LoadDirectory("rules"); err != nil {
//	    logger.Warn("Some rules failed to load", "error", err)
//	}
//
//	mgr.Evaluate(ctx)
//	mgr.ApplyAll(ctx, targets, func(id subject.ID, tree skeleton.JointTree) {
//	    tree.(*skeleton.Tree).UpdateWorld()
//	})
//
// ApplyAll loads the snapshot once per call and applies subjects in
// parallel; rules for one subject are applied sequentially in priority
// order.
package manager
