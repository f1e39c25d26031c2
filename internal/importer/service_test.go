package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/fingerprint"
	"github.com/lotware/prodimport/internal/repository"
	"github.com/lotware/prodimport/internal/schema"

	"github.com/google/uuid"
)

const p1Header = "lot_no,unit_no,inspected_at,inspector,result,measurement\n"
const p2Header = "lot_no,unit_no,line,assembled_at,cycle_time,operator\n"

func newTestService(t *testing.T, cfg Config) (*Service, *stubJobRepo, *stubRecordRepo) {
	t.Helper()
	cfg.Synchronous = true
	jobs := newStubJobRepo()
	records := newStubRecordRepo()
	return NewService(jobs, records, cfg), jobs, records
}

func TestCreateJobUnknownTableCode(t *testing.T) {
	service, _, _ := newTestService(t, Config{})

	_, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P9",
		Files:     []FileUpload{{Name: "p9.csv", Data: []byte(p1Header)}},
	})
	if !errors.Is(err, schema.ErrUnknownTableCode) {
		t.Fatalf("expected ErrUnknownTableCode, got %v", err)
	}
}

func TestCreateJobRequiresFiles(t *testing.T) {
	service, _, _ := newTestService(t, Config{})

	_, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
	})
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestCreateJobMixedExtensions(t *testing.T) {
	service, jobs, _ := newTestService(t, Config{})

	_, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files: []FileUpload{
			{Name: "a.csv", Data: []byte(p1Header)},
			{Name: "b.xlsx", Data: []byte("workbook")},
		},
	})
	if !errors.Is(err, ErrMixedExtensions) {
		t.Fatalf("expected ErrMixedExtensions, got %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatalf("rejected intake must persist nothing")
	}
}

func TestCreateJobUnsupportedFormat(t *testing.T) {
	service, _, _ := newTestService(t, Config{})

	_, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "a.txt", Data: []byte("nope")}},
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCreateJobDuplicateFileWithinRequest(t *testing.T) {
	service, _, _ := newTestService(t, Config{})
	content := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,OK,1\n")

	_, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files: []FileUpload{
			{Name: "a.csv", Data: content},
			{Name: "copy-of-a.csv", Data: content},
		},
	})
	if !errors.Is(err, ErrDuplicateFile) {
		t.Fatalf("expected ErrDuplicateFile, got %v", err)
	}
}

func TestCreateJobDuplicateFileAcrossJobs(t *testing.T) {
	service, _, _ := newTestService(t, Config{})
	tenantID := uuid.New()
	content := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,OK,1\n")

	if _, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  tenantID,
		TableCode: "P1",
		Files:     []FileUpload{{Name: "a.csv", Data: content}},
	}); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}

	_, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  tenantID,
		TableCode: "P1",
		Files:     []FileUpload{{Name: "again.csv", Data: content}},
	})
	if !errors.Is(err, ErrDuplicateFile) {
		t.Fatalf("expected ErrDuplicateFile, got %v", err)
	}

	// A different tenant can upload the same bytes.
	if _, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "a.csv", Data: content}},
	}); err != nil {
		t.Fatalf("other tenant blocked by foreign fingerprint: %v", err)
	}

	// The override flag skips the cross-job fingerprint check.
	if _, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:       tenantID,
		TableCode:      "P1",
		AllowDuplicate: true,
		Files:          []FileUpload{{Name: "third.csv", Data: content}},
	}); err != nil {
		t.Fatalf("override upload failed: %v", err)
	}
}

func TestFlatPipelineEndToEnd(t *testing.T) {
	service, jobs, records := newTestService(t, Config{})
	tenantID := uuid.New()

	content := []byte(p1Header +
		"LOT-A,1,2026-03-14,tanaka,OK,1\n" +
		"LOT-A,2,2026-03-14,tanaka,NG,2\n" +
		"LOT-A,3,2026-03-14,tanaka,BAD,3\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  tenantID,
		TableCode: "P1",
		Files:     []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	if job.Status != domain.JobStatusReady {
		t.Fatalf("expected READY, got %s", job.Status)
	}
	if job.TotalRows != 3 || job.ValidRows != 2 || job.ErrorRows != 1 {
		t.Fatalf("unexpected counts: %+v", job)
	}
	if job.ErrorSummary[domain.KindOutOfRange] != 1 {
		t.Fatalf("unexpected summary: %v", job.ErrorSummary)
	}

	files := jobs.files[job.ID]
	if len(files) != 1 || files[0].RowCount != 3 {
		t.Fatalf("file row count not recorded: %+v", files)
	}

	committed, err := service.Commit(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if committed.Status != domain.JobStatusCompleted || committed.CommittedAt == nil {
		t.Fatalf("unexpected committed job: %+v", committed)
	}
	if len(records.inserted) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records.inserted))
	}
	for _, record := range records.inserted {
		if record.TenantID != tenantID || record.TableCode != "P1" {
			t.Fatalf("record carries wrong scope: %+v", record)
		}
		if record.BusinessKey == "" {
			t.Fatalf("record missing business key")
		}
	}

	// The job is terminal now; a second commit is rejected.
	if _, err := service.Commit(context.Background(), job.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double commit, got %v", err)
	}
}

func TestGroupedPipelineCommit(t *testing.T) {
	service, _, records := newTestService(t, Config{})

	content := []byte(p2Header +
		"LOT-A,1,L1,2026-03-14,10,sato\n" +
		"LOT-A,2,L1,2026-03-14,11,sato\n" +
		"LOT-B,1,L2,2026-03-14,12,sato\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P2",
		Files:     []FileUpload{{Name: "p2.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	if job.ValidRows != 3 {
		t.Fatalf("expected 3 valid rows, got %+v", job)
	}

	if _, err := service.Commit(context.Background(), job.ID); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if len(records.groups) != 2 {
		t.Fatalf("expected one group per lot, got %d", len(records.groups))
	}
	itemCounts := map[string]int{}
	for _, write := range records.groups {
		lot, _ := write.Record.Properties["lot_no"].(string)
		itemCounts[lot] = len(write.Items)
		for _, item := range write.Items {
			if item.RecordID != write.Record.ID {
				t.Fatalf("detail row not linked to its group record")
			}
			if len(item.Payload) == 0 {
				t.Fatalf("detail row missing original payload")
			}
		}
	}
	if itemCounts["LOT-A"] != 2 || itemCounts["LOT-B"] != 1 {
		t.Fatalf("unexpected group sizes: %v", itemCounts)
	}

	// Without the duplicate override the group write must not request
	// overwrite semantics: a lot committed by a concurrent job since
	// validation has to fail this commit at the unique constraint instead
	// of silently replacing the other job's rows.
	if records.lastOverwrite {
		t.Fatalf("non-override grouped commit requested overwrite semantics")
	}
}

func TestGroupedCommitOverrideRequestsOverwrite(t *testing.T) {
	service, _, records := newTestService(t, Config{})

	content := []byte(p2Header + "LOT-A,1,L1,2026-03-14,10,sato\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:       uuid.New(),
		TableCode:      "P2",
		AllowDuplicate: true,
		Files:          []FileUpload{{Name: "p2.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	if _, err := service.Commit(context.Background(), job.ID); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if !records.lastOverwrite {
		t.Fatalf("override grouped commit must request overwrite semantics")
	}
}

func TestGroupedCommitRaceLoserFailsJob(t *testing.T) {
	service, jobs, records := newTestService(t, Config{})

	content := []byte(p2Header + "LOT-A,1,L1,2026-03-14,10,sato\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P2",
		Files:     []FileUpload{{Name: "p2.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	// The lot was committed by another job between validation and commit;
	// the unique constraint rejects the insert and the transaction fails.
	records.insertErr = errors.New(`duplicate key value violates unique constraint "uq_records_business_key"`)

	if _, err := service.Commit(context.Background(), job.ID); !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}
	stored := jobs.jobs[job.ID]
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("race loser must end FAILED, got %s", stored.Status)
	}
	if stored.ErrorSummary[domain.KindCommitFailed] != 1 {
		t.Fatalf("commit failure missing from summary: %v", stored.ErrorSummary)
	}
}

func TestInFileDuplicateBlocksBothRows(t *testing.T) {
	service, _, _ := newTestService(t, Config{})

	content := []byte(p1Header +
		"LOT-A,1,2026-03-14,tanaka,OK,1\n" +
		"LOT-A,1,2026-03-15,sato,NG,2\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	if job.ValidRows != 0 || job.ErrorRows != 2 {
		t.Fatalf("both occurrences must be flagged: %+v", job)
	}
	if job.ErrorSummary[domain.KindUniqueInFile] != 2 {
		t.Fatalf("unexpected summary: %v", job.ErrorSummary)
	}
}

func TestStoreDuplicateDetection(t *testing.T) {
	service, _, records := newTestService(t, Config{})
	tenantID := uuid.New()
	def, _ := schema.Lookup("P1")

	committed := fingerprint.Key(def.Code, def.KeyFields(), map[string]string{"lot_no": "LOT-A", "unit_no": "1"})
	records.seed(tenantID, committed)

	content := []byte(p1Header +
		"LOT-A,1,2026-03-14,tanaka,OK,1\n" +
		"LOT-A,2,2026-03-14,tanaka,OK,1\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  tenantID,
		TableCode: "P1",
		Files:     []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	if job.ValidRows != 1 || job.ErrorRows != 1 {
		t.Fatalf("expected exactly the committed key to be flagged: %+v", job)
	}
	if job.ErrorSummary[domain.KindUniqueInDB] != 1 {
		t.Fatalf("unexpected summary: %v", job.ErrorSummary)
	}
}

func TestStoreDuplicateScopedToTenant(t *testing.T) {
	service, _, records := newTestService(t, Config{})
	def, _ := schema.Lookup("P1")

	otherTenant := uuid.New()
	committed := fingerprint.Key(def.Code, def.KeyFields(), map[string]string{"lot_no": "LOT-A", "unit_no": "1"})
	records.seed(otherTenant, committed)

	content := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,OK,1\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	if job.ValidRows != 1 || job.ErrorRows != 0 {
		t.Fatalf("another tenant's records leaked into validation: %+v", job)
	}
}

func TestStoreDuplicateOverride(t *testing.T) {
	service, _, records := newTestService(t, Config{})
	tenantID := uuid.New()
	def, _ := schema.Lookup("P1")

	committed := fingerprint.Key(def.Code, def.KeyFields(), map[string]string{"lot_no": "LOT-A", "unit_no": "1"})
	records.seed(tenantID, committed)

	content := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,OK,1\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:       tenantID,
		TableCode:      "P1",
		AllowDuplicate: true,
		Files:          []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	if job.ValidRows != 1 {
		t.Fatalf("override must accept the committed key: %+v", job)
	}

	if _, err := service.Commit(context.Background(), job.ID); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if !records.lastOverwrite {
		t.Fatalf("override commit must request overwrite semantics")
	}
}

func TestZeroValidRowsDefaultPolicy(t *testing.T) {
	service, jobs, records := newTestService(t, Config{})

	content := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,BAD,1\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	if job.Status != domain.JobStatusReady || job.ValidRows != 0 {
		t.Fatalf("unexpected job: %+v", job)
	}

	committed, err := service.Commit(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("empty commit should succeed by default: %v", err)
	}
	if committed.Status != domain.JobStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", committed.Status)
	}
	if len(records.inserted) != 0 {
		t.Fatalf("empty commit wrote records")
	}

	stored := jobs.jobs[job.ID]
	if stored.ErrorSummary[domain.KindOutOfRange] != 1 {
		t.Fatalf("summary must survive the empty commit: %v", stored.ErrorSummary)
	}
}

func TestZeroValidRowsStrictPolicy(t *testing.T) {
	service, jobs, _ := newTestService(t, Config{FailOnZeroValid: true})

	content := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,BAD,1\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	if _, err := service.Commit(context.Background(), job.ID); !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}
	if jobs.jobs[job.ID].Status != domain.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", jobs.jobs[job.ID].Status)
	}
}

func TestAllFilesUnparsableFailsJob(t *testing.T) {
	service, jobs, _ := newTestService(t, Config{})

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "wrong.csv", Data: []byte("foo,bar\n1,2\n")}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
	if job.ErrorSummary[domain.KindHeaderMismatch] != 1 {
		t.Fatalf("unexpected summary: %v", job.ErrorSummary)
	}
	errs := jobs.errorsByJob[job.ID]
	if len(errs) != 1 || errs[0].RowIndex != 0 {
		t.Fatalf("expected one file-level finding, got %+v", errs)
	}
}

func TestOneBadFileAmongGood(t *testing.T) {
	service, jobs, _ := newTestService(t, Config{})

	good := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,OK,1\n")
	bad := []byte("foo,bar\n1,2\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files: []FileUpload{
			{Name: "good.csv", Data: good},
			{Name: "bad.csv", Data: bad},
		},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	// One readable file is enough to proceed; the bad file stays on record.
	if job.Status != domain.JobStatusReady {
		t.Fatalf("expected READY, got %s", job.Status)
	}
	if job.ValidRows != 1 {
		t.Fatalf("unexpected counts: %+v", job)
	}
	if job.ErrorSummary[domain.KindHeaderMismatch] != 1 {
		t.Fatalf("file-level finding missing from summary: %v", job.ErrorSummary)
	}
	if len(jobs.errorsByJob[job.ID]) != 1 {
		t.Fatalf("file-level finding not recorded")
	}
}

func TestCommitFailureMarksJobFailed(t *testing.T) {
	service, jobs, records := newTestService(t, Config{})

	content := []byte(p1Header + "LOT-A,1,2026-03-14,tanaka,OK,1\n")

	job, err := service.CreateJob(context.Background(), CreateJobRequest{
		TenantID:  uuid.New(),
		TableCode: "P1",
		Files:     []FileUpload{{Name: "p1.csv", Data: content}},
	})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}

	records.insertErr = errors.New("unique constraint violation")

	if _, err := service.Commit(context.Background(), job.ID); !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}

	stored := jobs.jobs[job.ID]
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if stored.ErrorSummary[domain.KindCommitFailed] != 1 {
		t.Fatalf("commit failure missing from summary: %v", stored.ErrorSummary)
	}
}

func TestJobErrorsForUnknownJob(t *testing.T) {
	service, _, _ := newTestService(t, Config{})

	_, err := service.JobErrors(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- stubs ---

type stubJobRepo struct {
	jobs        map[uuid.UUID]domain.ImportJob
	files       map[uuid.UUID][]domain.ImportFile
	errorsByJob map[uuid.UUID][]domain.ValidationError
	// fingerprint -> tenants that uploaded it
	fingerprints map[string]map[uuid.UUID]struct{}
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{
		jobs:         map[uuid.UUID]domain.ImportJob{},
		files:        map[uuid.UUID][]domain.ImportFile{},
		errorsByJob:  map[uuid.UUID][]domain.ValidationError{},
		fingerprints: map[string]map[uuid.UUID]struct{}{},
	}
}

func (s *stubJobRepo) CreateWithFiles(ctx context.Context, job domain.ImportJob, files []domain.ImportFile) error {
	s.jobs[job.ID] = job
	s.files[job.ID] = append([]domain.ImportFile(nil), files...)
	for _, file := range files {
		tenants, ok := s.fingerprints[file.Fingerprint]
		if !ok {
			tenants = map[uuid.UUID]struct{}{}
			s.fingerprints[file.Fingerprint] = tenants
		}
		tenants[job.TenantID] = struct{}{}
	}
	return nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return domain.ImportJob{}, repository.ErrNotFound
	}
	return job, nil
}

func (s *stubJobRepo) ListFiles(ctx context.Context, jobID uuid.UUID) ([]domain.ImportFile, error) {
	return s.files[jobID], nil
}

func (s *stubJobRepo) UpdateFileRowCount(ctx context.Context, fileID uuid.UUID, rowCount int) error {
	for jobID, files := range s.files {
		for i := range files {
			if files[i].ID == fileID {
				files[i].RowCount = rowCount
				s.files[jobID] = files
				return nil
			}
		}
	}
	return repository.ErrNotFound
}

func (s *stubJobRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.JobStatus) error {
	job, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if job.Status != from || !from.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}
	job.Status = to
	s.jobs[id] = job
	return nil
}

func (s *stubJobRepo) FinishValidation(ctx context.Context, job domain.ImportJob) error {
	stored, ok := s.jobs[job.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != domain.JobStatusValidating {
		return domain.ErrInvalidTransition
	}
	stored.Status = domain.JobStatusReady
	stored.TotalRows = job.TotalRows
	stored.ValidRows = job.ValidRows
	stored.ErrorRows = job.ErrorRows
	stored.ErrorSummary = job.ErrorSummary
	s.jobs[job.ID] = stored
	return nil
}

func (s *stubJobRepo) MarkFailed(ctx context.Context, id uuid.UUID, summary domain.ErrorSummary) error {
	job, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusFailed
	job.ErrorSummary = summary
	s.jobs[id] = job
	return nil
}

func (s *stubJobRepo) MarkCompleted(ctx context.Context, id uuid.UUID, committedAt time.Time) error {
	job, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if job.Status != domain.JobStatusCommitting {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusCompleted
	job.CommittedAt = &committedAt
	s.jobs[id] = job
	return nil
}

func (s *stubJobRepo) FingerprintExists(ctx context.Context, tenantID uuid.UUID, fingerprint string) (bool, error) {
	tenants, ok := s.fingerprints[fingerprint]
	if !ok {
		return false, nil
	}
	_, hit := tenants[tenantID]
	return hit, nil
}

func (s *stubJobRepo) RecordRowErrors(ctx context.Context, jobID uuid.UUID, errs []domain.ValidationError) error {
	s.errorsByJob[jobID] = append(s.errorsByJob[jobID], errs...)
	return nil
}

func (s *stubJobRepo) ListRowErrors(ctx context.Context, jobID uuid.UUID) ([]domain.ValidationError, error) {
	return s.errorsByJob[jobID], nil
}

type stubRecordRepo struct {
	existing      map[uuid.UUID]map[string]struct{}
	inserted      []domain.Record
	groups        []repository.GroupWrite
	lastOverwrite bool
	insertErr     error
}

func newStubRecordRepo() *stubRecordRepo {
	return &stubRecordRepo{existing: map[uuid.UUID]map[string]struct{}{}}
}

func (s *stubRecordRepo) seed(tenantID uuid.UUID, keys ...string) {
	set, ok := s.existing[tenantID]
	if !ok {
		set = map[string]struct{}{}
		s.existing[tenantID] = set
	}
	for _, key := range keys {
		set[key] = struct{}{}
	}
}

func (s *stubRecordRepo) ExistingRowKeys(ctx context.Context, tenantID uuid.UUID, tableCode string, grouped bool, keys []string) (map[string]struct{}, error) {
	hits := map[string]struct{}{}
	set := s.existing[tenantID]
	for _, key := range keys {
		if _, ok := set[key]; ok {
			hits[key] = struct{}{}
		}
	}
	return hits, nil
}

func (s *stubRecordRepo) InsertRecords(ctx context.Context, records []domain.Record, overwrite bool) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, records...)
	s.lastOverwrite = overwrite
	return nil
}

func (s *stubRecordRepo) ReplaceGroups(ctx context.Context, writes []repository.GroupWrite, overwrite bool) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.groups = append(s.groups, writes...)
	s.lastOverwrite = overwrite
	return nil
}

var _ repository.ImportJobRepository = (*stubJobRepo)(nil)
var _ repository.RecordRepository = (*stubRecordRepo)(nil)
