package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	rotationDomain "github.com/allisson/nostr-signer/internal/rotation/domain"
	rotationUseCase "github.com/allisson/nostr-signer/internal/rotation/usecase"
)

// RunRotationStatus prints rotation progress and the key versions protecting stored values.
func RunRotationStatus(
	ctx context.Context,
	rotationUseCase rotationUseCase.RotationUseCase,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	status, err := rotationUseCase.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get rotation status: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, statusJSON(status))
	}

	outputStatusText(writer, status)
	return nil
}

func statusJSON(status *rotationDomain.Status) map[string]any {
	counts := make(map[string]int, len(status.VersionCounts))
	for version, count := range status.VersionCounts {
		counts[strconv.Itoa(version)] = count
	}

	result := map[string]any{
		"key_available":           status.KeyAvailable,
		"active_version":          status.ActiveVersion,
		"allowed_versions":        status.AllowedVersions,
		"version_counts":          counts,
		"legacy_records":          status.LegacyRecords,
		"unreadable_records":      status.UnreadableRecords,
		"retired_versions_in_use": status.RetiredVersionsInUse,
		"up_to_date":              status.UpToDate(),
		"state": map[string]any{
			"target_version": status.State.TargetVersion,
			"user_page":      status.State.UserPaged,
			"done_users":     status.State.DoneUsers,
			"done_options":   status.State.DoneOptions,
		},
		"last_completed_at": nil,
	}
	if status.LastCompletedAt != nil {
		result["last_completed_at"] = status.LastCompletedAt.UTC().Format(time.RFC3339)
	}
	return result
}

func outputStatusText(writer io.Writer, status *rotationDomain.Status) {
	_, _ = fmt.Fprintf(writer, "Key available:      %t\n", status.KeyAvailable)
	_, _ = fmt.Fprintf(writer, "Active version:     %d\n", status.ActiveVersion)
	_, _ = fmt.Fprintf(writer, "Allowed versions:   %v\n", status.AllowedVersions)
	_, _ = fmt.Fprintf(
		writer,
		"Rotation state:     target=%d page=%d users_done=%t options_done=%t\n",
		status.State.TargetVersion,
		status.State.UserPaged,
		status.State.DoneUsers,
		status.State.DoneOptions,
	)
	if status.LastCompletedAt != nil {
		_, _ = fmt.Fprintf(writer, "Last completed:     %s\n", status.LastCompletedAt.UTC().Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintln(writer, "Last completed:     never")
	}

	versions := make([]int, 0, len(status.VersionCounts))
	for version := range status.VersionCounts {
		versions = append(versions, version)
	}
	slices.Sort(versions)
	for _, version := range versions {
		_, _ = fmt.Fprintf(writer, "Records at v%d:      %d\n", version, status.VersionCounts[version])
	}
	_, _ = fmt.Fprintf(writer, "Legacy records:     %d\n", status.LegacyRecords)
	_, _ = fmt.Fprintf(writer, "Unreadable records: %d\n", status.UnreadableRecords)

	if len(status.RetiredVersionsInUse) > 0 {
		_, _ = fmt.Fprintf(
			writer,
			"WARNING: retired versions %v still protect records; keep their key material until rotation completes\n",
			status.RetiredVersionsInUse,
		)
	}
	if status.LegacyRecords > 0 {
		_, _ = fmt.Fprintln(writer, "WARNING: legacy records are not rotated; run recrypt to move them to envelopes")
	}
	if status.UpToDate() {
		_, _ = fmt.Fprintln(writer, "All records use the active key version")
	}
}
