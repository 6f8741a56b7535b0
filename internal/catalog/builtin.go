package catalog

// builtinCategories is the symptom taxonomy the bundled classifier was
// trained on. Identifiers are the model's feature columns and are kept
// exactly as trained, including the stray spaces in a few of them.
func builtinCategories() []Category {
	return []Category{
		{Name: "General Symptoms", Symptoms: []string{
			"itching", "fatigue", "weight_gain", "weight_loss", "anxiety", "restlessness",
			"lethargy", "sweating", "dehydration", "malaise", "dizziness", "weakness_in_limbs",
			"bruising", "obesity", "excessive_hunger", "depression", "irritability",
			"altered_sensorium", "prognosis",
		}},
		{Name: "Skin & External", Symptoms: []string{
			"skin_rash", "nodal_skin_eruptions", "yellowish_skin", "red_spots_over_body",
			"dischromic _patches", "pus_filled_pimples", "blackheads", "scurring", "skin_peeling",
			"silver_like_dusting", "small_dents_in_nails", "inflammatory_nails", "blister",
			"red_sore_around_nose", "yellow_crust_ooze", "brittle_nails",
		}},
		{Name: "Respiratory", Symptoms: []string{
			"continuous_sneezing", "cough", "breathlessness", "phlegm", "throat_irritation",
			"runny_nose", "congestion", "chest_pain", "mucoid_sputum", "rusty_sputum",
			"blood_in_sputum", "sinus_pressure",
		}},
		{Name: "Digestive", Symptoms: []string{
			"stomach_pain", "acidity", "ulcers_on_tongue", "vomiting", "nausea", "loss_of_appetite",
			"constipation", "abdominal_pain", "diarrhoea", "indigestion", "belly_pain",
			"pain_during_bowel_movements", "pain_in_anal_region", "bloody_stool",
			"irritation_in_anus", "passage_of_gases", "internal_itching", "stomach_bleeding",
			"distention_of_abdomen",
		}},
		{Name: "Neurological", Symptoms: []string{
			"headache", "pain_behind_the_eyes", "blurred_and_distorted_vision", "spinning_movements",
			"loss_of_balance", "unsteadiness", "weakness_of_one_body_side", "loss_of_smell",
			"slurred_speech", "stiff_neck", "lack_of_concentration", "visual_disturbances", "coma",
		}},
		{Name: "Musculoskeletal", Symptoms: []string{
			"joint_pain", "muscle_wasting", "back_pain", "knee_pain", "hip_joint_pain",
			"muscle_weakness", "swelling_joints", "movement_stiffness", "muscle_pain", "neck_pain",
		}},
		{Name: "Cardiovascular", Symptoms: []string{
			"fast_heart_rate", "chest_pain", "palpitations", "prominent_veins_on_calf", "painful_walking",
		}},
		{Name: "Urinary", Symptoms: []string{
			"burning_micturition", "spotting_ urination", "dark_urine", "yellow_urine",
			"bladder_discomfort", "foul_smell_of urine", "continuous_feel_of_urine", "polyuria",
		}},
		{Name: "Fever & Temperature", Symptoms: []string{
			"shivering", "chills", "high_fever", "mild_fever", "cold_hands_and_feets",
		}},
		{Name: "Eyes & Vision", Symptoms: []string{
			"sunken_eyes", "yellowing_of_eyes", "redness_of_eyes", "watering_from_eyes",
			"puffy_face_and_eyes",
		}},
		{Name: "Endocrine", Symptoms: []string{
			"irregular_sugar_level", "enlarged_thyroid", "mood_swings", "increased_appetite",
		}},
		{Name: "Reproductive", Symptoms: []string{
			"abnormal_menstruation", "extra_marital_contacts",
		}},
		{Name: "Circulatory & Fluid", Symptoms: []string{
			"acute_liver_failure", "fluid_overload", "swelling_of_stomach", "swelled_lymph_nodes",
			"swollen_legs", "swollen_blood_vessels", "swollen_extremeties",
		}},
		{Name: "Oral & Throat", Symptoms: []string{
			"patches_in_throat", "drying_and_tingling_lips",
		}},
		{Name: "Risk Factors", Symptoms: []string{
			"family_history", "receiving_blood_transfusion", "receiving_unsterile_injections",
			"history_of_alcohol_consumption",
		}},
		{Name: "Severe Symptoms", Symptoms: []string{
			"toxic_look_(typhos)", "cramps",
		}},
	}
}
