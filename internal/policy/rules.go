package policy

// DefaultEngine returns the rule table a gateway uses for every session:
// the options needed for each mode to behave correctly, the options the
// server manages itself and refuses from the client, the options required
// for a complete backup or restore, and the options forbidden outright
// because they would produce an incomplete backup or compromise the server.
func DefaultEngine() *Engine {
	e := NewEngine()

	// Options needed for the various modes to behave correctly.
	//
	// Omitting --one-file-system might be useful in fringe situations but
	// usually just ends up backing up /proc and/or /sys. It doesn't do
	// anything on the server since there are no mounts inside the backup
	// directories, but it has to arrive from the client. For restore it
	// must be allowed, since the restore target might not be a mountpoint
	// that was one during backup. For list it's irrelevant.
	e.Add([]ModeEntry{
		{Modes: []Mode{Backup, Verify}, Verdict: "require", Hint: "avoids backing up /proc or /sys"},
		{Modes: []Mode{Restore, List}, Verdict: "allow"},
	}, "", "-x --one-file-system")

	// Checksum mode is pointless transferring to an empty backup or
	// restore destination, but helps when verifying.
	e.Add([]ModeEntry{
		{Modes: []Mode{Backup, Restore}, Verdict: "discourage", Hint: "slows down transfers"},
		{Modes: []Mode{List}, Verdict: "allow"},
		{Modes: []Mode{Verify}, Verdict: "recommend", Hint: "more thorough verification"},
	}, "", "-c --checksum")

	// --itemize-changes actually sets --log-format. Verify does very
	// little without it, and it is also useful to monitor backup progress.
	e.Add([]ModeEntry{
		{Modes: []Mode{Verify}, Verdict: "recommend", Hint: "to see the differences"},
		{Modes: []Mode{Backup, Restore, List}, Verdict: "allow"},
	}, "-i --itemize-changes", "-i --itemize-changes", "--log-format=")

	// Options that we actually use internally and thus don't want the
	// client to set.
	//
	// Unsupported for backup since --link-dest is set by the server
	// itself. Never even sent to the server in restore mode, where the
	// destination is local.
	e.Deny("backups always use --link-dest", "--compare-dest=", "--copy-dest=", "--link-dest=")
	// Backup always runs with --partial-dir. --max-alloc, --super and
	// --fake-super are refused from the client; the gateway does not add
	// any of them to the argv it builds.
	e.Deny("this option is always set server-side", "--partial", "--partial-dir=")
	e.Deny("this option is configured server-side", "--fake-super", "--super", "--max-alloc=")

	// Options required for a complete backup / restore.
	//
	// Except for -r, these are all meaningless for listing. They are
	// allowed because meaningless implies harmless, and having to remove
	// options just to list is annoying.
	e.Add([]ModeEntry{
		{Modes: []Mode{Backup, Restore, Verify}, Verdict: "require"},
		{Modes: []Mode{List}, Verdict: "allow"},
	}, "-a --archive", "-r", "-l", "-p", "-t", "-g", "-o", "-D")
	e.Add([]ModeEntry{
		{Modes: []Mode{Backup, Restore, Verify}, Verdict: "require", Hint: "local usernames are meaningless on the server"},
		{Modes: []Mode{List}, Verdict: "allow"},
	}, "", "--numeric-ids")
	// For backup these are harmless when locally unsupported. Allow
	// disabling them for restore: if the local system doesn't support
	// them there is no point restoring them, and it might even break
	// the restore.
	e.Add([]ModeEntry{
		{Modes: []Mode{Backup, Verify}, Verdict: "require", Hint: "works even if locally unsupported"},
		{Modes: []Mode{List}, Verdict: "allow"},
		{Modes: []Mode{Restore}, Verdict: "recommend", Hint: "if locally supported"},
	}, "-HAX", "-H --hard-links", "-A --acls", "-X --xattrs")
	// --delete* is optional on restore and meaningless on list, but isn't
	// sent to the server in those cases. For backup, --delete is required
	// to avoid zombie files, and has to be specifically --delete-delay to
	// support --fuzzy --inc-recursive without running out of memory.
	e.Deny("use --delete-delay", "--delete", "--delete-after", "--delete-before", "--delete-during", "--delete-excluded")
	e.Add([]ModeEntry{
		{Modes: []Mode{Restore, List}, Verdict: "deny", Hint: "how did you even get your rsync to send that option?"},
		{Modes: []Mode{Backup, Verify}, Verdict: "require", Hint: "avoids zombie files"},
	}, "", "--delete-delay", "--delete-excluded")
	// Access and creation times technically make for a more complete
	// backup, but are obscure enough that nobody cares. The options
	// didn't even exist before rsync 3.2. --atimes basically requires
	// --open-noatime, though it doesn't imply it automatically.
	e.Allow("", "-N --crtimes", "-U --atimes", "--open-noatime")

	// Forbidden options to keep the user from accidentally making an
	// incomplete backup.
	//
	// --dirs is set when listing non-recursively, which can be genuinely
	// useful. In every other mode it skips almost all of the backup. The
	// other options here are similar: they unnecessarily exclude stuff
	// from the backup, though they can be useful on restore if a partial
	// restore is actually desired and the user knows it will be partial.
	e.Add([]ModeEntry{
		{Modes: []Mode{Backup, Verify}, Verdict: "deny", Hint: "backup will be incomplete"},
		{Modes: []Mode{Restore}, Verdict: "discourage", Hint: "restore may be incomplete"},
		{Modes: []Mode{List}, Verdict: "allow"},
	}, "", "-d --dirs", "-m --prune-empty-dirs", "-J --omit-link-times", "-O --omit-dir-times",
		"--ignore-existing", "--max-delete=", "--max-size=", "--min-size=")
	// Symlinks can be backed up and restored as symlinks. Dereferencing
	// them is a really easy way to break any UNIX system setup, so
	// everything that can dereference symlinks is disabled.
	e.Deny("destroys symlinks", "-L --copy-links", "-k --copy-dirlinks", "--copy-unsafe-links", "--safe-links")
	// --cvs-exclude might be useful but has fairly complex implicit
	// semantics; manual --exclude is safer.
	e.Discourage("backup / restore might be incomplete", "-C --cvs-exclude")
	// --iconv charset-converts filenames. Necessary before universal
	// UTF-8 filenames, these days more likely to corrupt them.
	e.Deny("will likely mangle your filenames", "--iconv=")

	// Options that aren't supported, or that make no sense for a backup.
	e.Deny("when has that ever been a good idea?", "--ignore-errors")
	e.Deny("slows down transfers", "-W --whole-file")
	// --protect-args would be useful but would require parsing the
	// stream, and that isn't happening. -@ and -B take arguments we don't
	// want to parse; fortunately they aren't very useful here anyway.
	e.Deny("not supported by backup system", "-s --protect-args", "-@ --modify-window=", "-B --block-size=")
	// These options either make no sense in a backup (--backup --suffix
	// etc.), are pointless (--append), or make sense only for restore but
	// then aren't sent to the server (--existing).
	e.Deny("does not make sense for backup storage",
		"-R --relative", "-b --backup", "-u --update", "--append", "--backup-dir", "--delay-updates", "--existing",
		"--inplace", "--remove-source-files", "--groupmap=", "--usermap=", "--mkpath", "--preallocate", "--suffix=",
		"--size-only")
	// Seriously dangerous options. Most allow at least arbitrary file
	// read, some even arbitrary file write.
	e.Deny("please do not hack the server",
		"-K --keep-dirlinks", "--daemon", "--files-from=", "--write-devices", "--log-file=", "--only-write-batch=",
		"--temp-dir=")
	// Options the rsync client should never set for a proper invocation.
	e.Deny("rsync should never have sent that option for a proper invocation",
		"-E --executability", "-I --ignore-times", "--force", "--from0", "--no-implied-dirs")
	// If source arguments are missing, the user should get a warning
	// about that, not have this server silently accommodate it.
	e.Deny("fix your commandline instead", "--delete-missing-args", "--ignore-missing-args")
	e.Discourage("use the SSH timeout instead", "--timeout=")

	// Configuration options that we simply don't care about: they make no
	// functional difference but can be useful for bandwidth or performance.
	e.Allow("client-controlled trade-off",
		"-z --compress", "-y --fuzzy", "-S --sparse", "--bwlimit", "--checksum-choice=", "--checksum-seed=",
		"--compress-choice=", "--compress-level=", "--old-compress", "--new-compress", "--skip-compress=")
	// Debug output doesn't hurt, and mixing errors with messages only
	// hurts the user who asked for it.
	e.Allow("informational outputs", "--stats", "--debug=", "--info=", "--no-msgs2stderr", "--msgs2stderr")

	return e
}
