package llm

const systemInstruction = "You are a scientific research assistant. Respond only with valid JSON."

const extractionPrompt = `You are a scientific research assistant specializing in exercise science, sports medicine, and fitness research.

Analyze the following research paper and extract scientific claims. For each significant claim found, provide:

1. **Claim**: The main scientific claim (concise, factual statement)
2. **Claim Summary**: A brief 1-2 sentence summary
3. **Evidence Level**: Rate 1-5 where:
   - 1 = Expert opinion, case study
   - 2 = Cross-sectional, observational
   - 3 = Cohort or case-control
   - 4 = Randomized Controlled Trial (RCT)
   - 5 = Systematic review or meta-analysis
4. **Sample Size**: Number of participants (if mentioned)
5. **Effect Size**: Effect size or magnitude of results (e.g., "d=0.8", "15%% increase", "p<0.001")
6. **Study Design**: One of: meta_analysis, systematic_review, rct, cohort, case_control, cross_sectional, case_study, expert_opinion
7. **Population**: Study population (e.g., "trained athletes", "sedentary adults", "elderly")
8. **Key Findings**: Array of 2-4 key findings
9. **Limitations**: Study limitations mentioned or implied
10. **Category**: One of: hypertrophy, strength, endurance, nutrition, recovery, injury_prevention, technique, programming, supplements, general
11. **Confidence**: Your confidence in this extraction (0.0-1.0)

Paper Title: %s
Authors: %s
Abstract: %s

Respond ONLY with a JSON array of claims. Each claim should be an object with fields:
claim, claim_summary, evidence_level, sample_size, effect_size, study_design, population, key_findings, limitations, category, confidence.
If no significant claims can be extracted, return an empty array [].`

const validationPrompt = `You are a scientific validation expert. Evaluate the following scientific claim for quality and validity.

Claim: %s
Category: %s
Evidence Level: %d
Study Design: %s
Sample Size: %s
Effect Size: %s

Existing Similar Claims:
%s

Evaluate and respond with JSON:
{
  "is_valid": true/false,
  "rejection_reasons": ["reason1", "reason2"] (empty if valid),
  "duplicate_of": "claim_id" (null if not duplicate),
  "conflicts_with": ["claim_id1", "claim_id2"] (empty if no conflicts)
}

Validation criteria:
- Evidence level should match study design
- Sample size should be appropriate for the claim
- Effect size should be reported if claiming significant results
- Should not be duplicate of existing claims (similarity > 0.9)
- Should not contradict higher-evidence claims without strong justification`

const conflictPrompt = `Compare these two scientific claims and determine if they conflict with each other.

Claim A: %s
Evidence Level A: %d
Study Design A: %s

Claim B: %s
Evidence Level B: %d
Study Design B: %s

Respond with JSON:
{
  "conflict_detected": true/false,
  "conflict_type": "direct" | "partial" | "none",
  "confidence": 0.0-1.0,
  "explanation": "Explanation of the conflict or why there's no conflict"
}`
