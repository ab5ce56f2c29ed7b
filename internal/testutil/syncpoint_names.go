// Package testutil provides test utilities for stress testing and verification.
//
// This file defines sync point names used throughout the codebase.
// These are plain string constants with zero runtime overhead.
//
// Sync points allow tests to inject deterministic behavior into concurrent code.
// In production builds (without -tags synctest), SP() calls are no-ops.
package testutil

// Sync point names used throughout the coordinator.
// Naming convention: "Component::Function:Location"
const (
	// Ingestion
	SPIngestInsertStart      = "Processor::Insert:Start"
	SPIngestInsertComplete   = "Processor::Insert:Complete"
	SPIngestBufferCreated    = "Processor::GetOrCreateBuffer:Created"
	SPIngestBufferEvicted    = "Processor::GetOrCreateBuffer:Evicted"
	SPIngestTabletRunFlushed = "Processor::InsertTablet:RunFlushed"

	// Recovery
	SPRecoverStart      = "Processor::Recover:Start"
	SPRecoverFileStart  = "Processor::Recover:FileStart"
	SPRecoverFileFailed = "Processor::Recover:FileFailed"
	SPRecoverComplete   = "Processor::Recover:Complete"
	SPRecoverMergeFound = "Processor::Recover:MergeModsFound"

	// Close / flush
	SPCloseAsyncStart    = "Processor::AsyncClose:Start"
	SPCloseCallback      = "Processor::CloseCallback:Start"
	SPCloseCallbackDone  = "Processor::CloseCallback:Complete"
	SPCloseSyncAllWait   = "Processor::SyncCloseAll:Wait"
	SPCloseSyncAllDone   = "Processor::SyncCloseAll:Complete"
	SPCloseUpdateFlushed = "Processor::UpdateLatestFlushTime:Complete"

	// Merge lifecycle
	SPMergeKickoffStart    = "MergeCoordinator::Kickoff:Start"
	SPMergeSelected        = "MergeCoordinator::Kickoff:Selected"
	SPMergeSubmitted       = "MergeCoordinator::Kickoff:Submitted"
	SPMergeEndActionStart  = "MergeCoordinator::EndAction:Start"
	SPMergeEndActionRetry  = "MergeCoordinator::EndAction:LockRetry"
	SPMergeEndActionFile   = "MergeCoordinator::EndAction:FileDone"
	SPMergeEndActionDone   = "MergeCoordinator::EndAction:Complete"
	SPMergeModsAppend      = "MergeCoordinator::MergingMods:Append"
	SPMergeRecoveryResumed = "MergeCoordinator::Recovery:Resumed"
	SPMergeRecoveryDropped = "MergeCoordinator::Recovery:Dropped"

	// Delete
	SPDeleteStart     = "Processor::Delete:Start"
	SPDeleteWALAppend = "Processor::Delete:WALAppend"
	SPDeleteMirrored  = "Processor::Delete:MirroredToMergingMods"
	SPDeleteSidecar   = "Processor::Delete:SidecarWritten"
	SPDeleteRollback  = "Processor::Delete:Rollback"
	SPDeleteComplete  = "Processor::Delete:Complete"

	// TTL sweep
	SPTTLSweepStart    = "TTLSweeper::Check:Start"
	SPTTLSweepSkip     = "TTLSweeper::Check:Skip"
	SPTTLSweepEvict    = "TTLSweeper::Check:Evict"
	SPTTLSweepComplete = "TTLSweeper::Check:Complete"

	// Load
	SPLoadGeneralStart  = "LoadPlanner::LoadGeneral:Start"
	SPLoadPositionFound = "LoadPlanner::FindInsertionPosition:Found"
	SPLoadOverlap       = "LoadPlanner::FindInsertionPosition:Overlap"
	SPLoadRename        = "LoadPlanner::Rename:Complete"
	SPLoadComplete      = "LoadPlanner::LoadGeneral:Complete"

	// Query
	SPQueryStart    = "Processor::Query:Start"
	SPQueryResource = "Processor::Query:ResourceIncluded"
	SPQueryComplete = "Processor::Query:Complete"
)
