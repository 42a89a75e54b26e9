package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/adapters/crm"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/store"
)

// Discovery scoring constants. The pipeline shares the translation
// scoring philosophy but runs over field metadata instead of bare names,
// so labels and normalized types contribute.
const (
	discExactNameScore     = 0.98
	discExactLabelScore    = 0.95
	discStandardTableScore = 0.92
	discTypeSimilarityMin  = 0.6
	discTypeSimilarityMult = 0.85
	discSemanticScore      = 0.75
	discReferenceScore     = 0.8
	discAgreementStep      = 0.05
	discConfidenceCap      = 0.99

	defaultAutoApproveThreshold = 0.95
	minPicklistSimilarity       = 0.6
)

// DiscoveryService ingests live schema metadata and turns it into
// mapping proposals for the audit queue.
type DiscoveryService struct {
	brain     *store.BrainStore
	discovery *store.DiscoveryStore
	matcher   *EntityMatcher
	threshold float64
	logger    *zap.Logger
}

// NewDiscoveryService creates a discovery service over the two stores.
func NewDiscoveryService(brain *store.BrainStore, discovery *store.DiscoveryStore, logger *zap.Logger) *DiscoveryService {
	return &DiscoveryService{
		brain:     brain,
		discovery: discovery,
		matcher:   NewEntityMatcher(brain.Seed()),
		threshold: defaultAutoApproveThreshold,
		logger:    logger.Named("discovery"),
	}
}

// DiscoverSchema pulls entity and field metadata from one platform and
// generates proposals against the target platform. Endpoint failures for
// one entity are captured in the result's error list and discovery
// continues with the remaining entities.
func (s *DiscoveryService) DiscoverSchema(ctx context.Context, intr crm.SchemaIntrospector, tgtPlat models.Platform) models.DiscoveryResult {
	started := time.Now().UTC()
	srcPlat := intr.Platform()
	result := models.DiscoveryResult{
		RunID:     uuid.NewString(),
		Platform:  srcPlat,
		StartedAt: started,
	}

	entities, err := intr.ListEntities(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "list entities: "+err.Error())
	}

	for _, entity := range entities {
		fields, err := intr.DescribeFields(ctx, entity)
		if err != nil {
			result.Errors = append(result.Errors, "describe "+entity+": "+err.Error())
			continue
		}
		result.EntitiesFound++
		result.FieldsFound += len(fields)
		for _, f := range fields {
			if f.IsCustom {
				result.CustomFields++
			}
		}
		s.discovery.PutSchema(srcPlat, entity, fields)

		canonical, ok := s.matcher.Match(entity)
		if !ok {
			result.Errors = append(result.Errors, "no entity match for "+entity)
			continue
		}
		targetEntity, targetFields := s.targetFields(tgtPlat, canonical)
		if len(targetFields) == 0 {
			continue
		}

		for _, src := range fields {
			if src.IsSystem {
				continue
			}
			proposal := s.proposeMapping(src, entity, tgtPlat, targetEntity, targetFields)
			if proposal == nil {
				continue
			}
			if s.discovery.IsSettled(proposal.ID) {
				continue
			}
			result.ProposalsCreated++
			if s.autoApprove(proposal, src, targetFields) {
				result.AutoApproved++
			} else {
				s.discovery.Enqueue(proposal)
			}
		}
	}

	result.Duration = time.Since(started).Seconds()
	s.discovery.AppendResult(result)
	if err := s.discovery.Save(); err != nil {
		result.Errors = append(result.Errors, "save discovery state: "+err.Error())
	}

	s.logger.Info("Discovery run complete",
		zap.String("run_id", result.RunID),
		zap.String("platform", string(srcPlat)),
		zap.Int("entities", result.EntitiesFound),
		zap.Int("fields", result.FieldsFound),
		zap.Int("proposals", result.ProposalsCreated),
		zap.Int("auto_approved", result.AutoApproved),
		zap.Int("errors", len(result.Errors)))
	return result
}

// targetFields resolves the target platform's metadata for a canonical
// entity, preferring a previously discovered schema over the builtin seed.
func (s *DiscoveryService) targetFields(tgtPlat models.Platform, canonical string) (string, []models.FieldMetadata) {
	for _, candidate := range append([]string{canonical}, s.brain.Seed().EntitySynonyms[canonical]...) {
		if fields := s.discovery.Schema(tgtPlat, candidate); len(fields) > 0 {
			return candidate, fields
		}
	}
	return canonical, s.brain.Seed().FieldMetadata(tgtPlat, canonical)
}

type discoveryCandidate struct {
	field   models.FieldMetadata
	scores  []float64
	reasons []string
}

// proposeMapping runs the multi-strategy pipeline for one source field
// and returns a proposal carrying the best candidate, up to three
// alternatives, and the reasoning list. Returns nil when no strategy fires.
func (s *DiscoveryService) proposeMapping(src models.FieldMetadata, srcEntity string, tgtPlat models.Platform, tgtEntity string, targets []models.FieldMetadata) *models.MappingProposal {
	candidates := make(map[string]*discoveryCandidate)
	add := func(tgt models.FieldMetadata, score float64, reason string) {
		c, ok := candidates[tgt.Name]
		if !ok {
			c = &discoveryCandidate{field: tgt}
			candidates[tgt.Name] = c
		}
		c.scores = append(c.scores, score)
		c.reasons = append(c.reasons, reason)
	}

	for _, tgt := range targets {
		if strings.EqualFold(src.Name, tgt.Name) {
			add(tgt, discExactNameScore, "Exact API name match")
		}
		if src.Label != "" && tgt.Label != "" && strings.EqualFold(src.Label, tgt.Label) {
			add(tgt, discExactLabelScore, "Exact label match")
		}
		if standard, ok := s.brain.Seed().StandardTarget(tgtEntity, src.Platform, src.Name, tgtPlat); ok && strings.EqualFold(standard, tgt.Name) {
			add(tgt, discStandardTableScore, "Standard mapping table")
		}
		if src.Type != "" && src.Type == tgt.Type {
			sim := max(
				similarityRatio(strings.ToLower(src.Name), strings.ToLower(tgt.Name)),
				similarityRatio(strings.ToLower(src.Label), strings.ToLower(tgt.Label)),
			)
			if sim >= discTypeSimilarityMin {
				add(tgt, sim*discTypeSimilarityMult, "Same type with similar name")
			}
		}
		if sameSemanticGroup(src.Name, tgt.Name) {
			add(tgt, discSemanticScore, "Semantic similarity")
		}
		if src.ReferenceTarget != "" && tgt.ReferenceTarget != "" {
			srcRef, okSrc := s.matcher.Match(src.ReferenceTarget)
			tgtRef, okTgt := s.matcher.Match(tgt.ReferenceTarget)
			if okSrc && okTgt && srcRef == tgtRef {
				add(tgt, discReferenceScore, "Reference target match")
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	type ranked struct {
		candidate *discoveryCandidate
		score     float64
	}
	var rankedList []ranked
	for _, c := range candidates {
		best := 0.0
		for _, score := range c.scores {
			best = max(best, score)
		}
		score := min(best*(1+discAgreementStep*float64(len(c.scores))), discConfidenceCap)
		rankedList = append(rankedList, ranked{c, score})
	}
	sort.Slice(rankedList, func(i, j int) bool {
		if rankedList[i].score != rankedList[j].score {
			return rankedList[i].score > rankedList[j].score
		}
		return rankedList[i].candidate.field.Name < rankedList[j].candidate.field.Name
	})

	best := rankedList[0]
	proposal := &models.MappingProposal{
		ID:             models.ProposalID(src.Platform, srcEntity, src.Name, tgtPlat),
		SourcePlatform: src.Platform,
		SourceEntity:   srcEntity,
		SourceField:    src.Name,
		SourceType:     src.Type,
		TargetPlatform: tgtPlat,
		TargetEntity:   tgtEntity,
		TargetField:    best.candidate.field.Name,
		TargetType:     best.candidate.field.Type,
		Confidence:     best.score,
		Status:         models.ProposalPending,
		Reasoning:      best.candidate.reasons,
		ValueMappings:  picklistValuePairs(src, best.candidate.field),
		CreatedAt:      time.Now().UTC(),
	}
	for _, alt := range rankedList[1:] {
		if len(proposal.Alternatives) == 3 {
			break
		}
		proposal.Alternatives = append(proposal.Alternatives, models.AlternativeMapping{
			FieldName:  alt.candidate.field.Name,
			Confidence: alt.score,
		})
	}
	return proposal
}

// autoApprove settles a proposal directly when confidence clears the
// threshold and the normalized types agree. Returns true when settled.
func (s *DiscoveryService) autoApprove(p *models.MappingProposal, src models.FieldMetadata, targets []models.FieldMetadata) bool {
	if p.Confidence < s.threshold {
		return false
	}
	var target *models.FieldMetadata
	for i := range targets {
		if targets[i].Name == p.TargetField {
			target = &targets[i]
			break
		}
	}
	if target == nil || src.Type != target.Type {
		return false
	}
	p.Status = models.ProposalAuto
	s.discovery.PutApproved(p)
	s.brain.Counters().AutoResolved++
	return true
}

// picklistValuePairs pairs source picklist literals with target ones:
// exact case-insensitive match wins, else the most similar value at
// ratio >= 0.6.
func picklistValuePairs(src, tgt models.FieldMetadata) map[string]string {
	if len(src.PicklistValues) == 0 || len(tgt.PicklistValues) == 0 {
		return nil
	}
	pairs := make(map[string]string)
	for _, sv := range src.PicklistValues {
		matched := ""
		for _, tv := range tgt.PicklistValues {
			if strings.EqualFold(sv, tv) {
				matched = tv
				break
			}
		}
		if matched == "" {
			bestScore := 0.0
			for _, tv := range tgt.PicklistValues {
				if score := similarityRatio(strings.ToLower(sv), strings.ToLower(tv)); score > bestScore {
					bestScore = score
					matched = tv
				}
			}
			if bestScore < minPicklistSimilarity {
				matched = ""
			}
		}
		if matched != "" {
			pairs[sv] = matched
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	return pairs
}
