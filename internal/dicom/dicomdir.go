package dicom

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomexporter/internal/util"
)

// DICOMDIRName is the file-set index the reader skips while scanning.
const DICOMDIRName = "DICOMDIR"

// OrganizeIntoDICOMDIR moves the files of s into a PT000000/ST000000/SE000000
// hierarchy under s.Dir and writes a DICOMDIR next to it. s.Files is
// updated to the new paths.
//
// Directory record offsets are written as zero: the file-set is meant for
// tools that walk the tree, not for media readers that follow offsets.
func OrganizeIntoDICOMDIR(s *SyntheticSeries) error {
	if len(s.Files) == 0 {
		return fmt.Errorf("no files to organize")
	}

	seriesPath := filepath.Join(s.Dir, "PT000000", "ST000000", "SE000000")
	if err := os.MkdirAll(seriesPath, 0755); err != nil {
		return fmt.Errorf("create series directory: %w", err)
	}

	moved := make([]string, len(s.Files))
	for i, src := range s.Files {
		dst := filepath.Join(seriesPath, fmt.Sprintf("IM%06d", i+1))
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("move file %s to %s: %w", src, dst, err)
		}
		moved[i] = dst
	}
	s.Files = moved

	if err := writeDICOMDIR(s); err != nil {
		return fmt.Errorf("create DICOMDIR file: %w", err)
	}
	return nil
}

func writeDICOMDIR(s *SyntheticSeries) error {
	record := func(recordType string, elems ...*dicom.Element) []*dicom.Element {
		return append([]*dicom.Element{
			mustNewElement(tag.OffsetOfTheNextDirectoryRecord, []int{0}),
			mustNewElement(tag.RecordInUseFlag, []int{0xFFFF}),
			mustNewElement(tag.OffsetOfReferencedLowerLevelDirectoryEntity, []int{0}),
			mustNewElement(tag.DirectoryRecordType, []string{recordType}),
		}, elems...)
	}

	records := [][]*dicom.Element{
		record("PATIENT",
			mustNewElement(tag.PatientID, []string{s.PatientID}),
			mustNewElement(tag.PatientName, []string{s.PatientName}),
		),
		record("STUDY",
			mustNewElement(tag.StudyInstanceUID, []string{s.StudyUID}),
		),
		record("SERIES",
			mustNewElement(tag.Modality, []string{string(s.Modality)}),
			mustNewElement(tag.SeriesInstanceUID, []string{s.SeriesUID}),
			mustNewElement(tag.SeriesNumber, []string{"1"}),
		),
	}
	for i, path := range s.Files {
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		records = append(records, record("IMAGE",
			mustNewElement(tag.ReferencedFileID, strings.Split(filepath.ToSlash(rel), "/")),
			mustNewElement(tag.ReferencedSOPClassUIDInFile, []string{s.SOPClassUID}),
			mustNewElement(tag.ReferencedSOPInstanceUIDInFile, []string{s.InstanceUIDs[i]}),
			mustNewElement(tag.ReferencedTransferSyntaxUIDInFile, []string{"1.2.840.10008.1.2.1"}),
		))
	}

	seq, err := dicom.NewElement(tag.DirectoryRecordSequence, records)
	if err != nil {
		return fmt.Errorf("create directory record sequence: %w", err)
	}

	filesetID := filepath.Base(s.Dir)
	if len(filesetID) > 16 {
		filesetID = filesetID[:16]
	}
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.1.3.10"}), // Media Storage Directory Storage
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{util.GenerateDeterministicUID(s.SeriesUID + "_dicomdir")}),
		mustNewElement(tag.ImplementationClassUID, []string{"1.2.826.0.1.3680043.8.498"}),
		mustNewElement(tag.FileSetID, []string{filesetID}),
		mustNewElement(tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.OffsetOfTheLastDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.FileSetConsistencyFlag, []int{0}),
		seq,
	}}

	if err := writeDatasetToFile(filepath.Join(s.Dir, DICOMDIRName), ds); err != nil {
		return fmt.Errorf("write DICOMDIR: %w", err)
	}
	return nil
}
